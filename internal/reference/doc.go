// Package reference computes expected values that integrated trajectories
// are checked against: closed-form oscillator motion, rigid circular orbits
// and the statistics of the Monte Carlo estimate of pi.
//
// References are evaluable at any instant and never share state with an
// integrator. They read the same parameter records as the physics models.
package reference
