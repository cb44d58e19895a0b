// Package l4reference owns Layer 4 (Reference) of the spectrometer chain.
//
// Responsibilities: reference spectrum import, export and generation,
// per-bin calibration factors and absorbance against a zero reference.
// The engines hold sticky state that survives frames but is bound to the
// wavelength grid it was computed on.
//
// Dependency rule: L4 may depend on L1-L3, but never on L5. No file or
// database access happens here; callers pass readers and writers.
package l4reference
