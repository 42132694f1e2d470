// Package analysis post-processes stored trajectories.
//
//   - [DominantPeriod]: period of the strongest spectral line of one component
//   - [PowerSpectrum]: magnitude spectrum of a uniformly sampled series
//   - [NewPhasePortrait]: two components plotted against each other
//   - [NewPoincareSection]: states where one component crosses a level
//
// Spectral estimates are independent of the crossing-based period used by
// the validation harness, so the two can be compared:
//
//	p, err := analysis.DominantPeriod(traj.Times(), traj.Component(0))
package analysis
