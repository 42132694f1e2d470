// Package viz renders validation reports, convergence tables and
// trajectory plots for a terminal.
//
// Everything returns a string; callers decide where it goes. Styles come
// from lipgloss, which drops colour when the output is not a terminal.
package viz
