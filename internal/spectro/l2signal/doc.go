// Package l2signal owns Layer 2 (Signal) of the spectrometer chain.
//
// Responsibilities: per-channel gain and linearization, the averaging ring
// buffer and the low-pass biquad cascade. TemporalStage is the only stateful
// type in the layer and must be driven from a single goroutine.
//
// Dependency rule: L2 may depend on L1, but never on L3+.
package l2signal
