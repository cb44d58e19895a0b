// Package l3wavelength owns Layer 3 (Wavelength) of the spectrometer chain.
//
// Responsibilities: the pixel to wavelength calibration map and resampling
// of per-column curves onto the fixed output grid.
// Key types: CalibrationMap, Mapper.
//
// Dependency rule: L3 may depend on L1-L2, but never on L4+.
package l3wavelength
