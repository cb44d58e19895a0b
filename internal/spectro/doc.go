// Package spectro holds the data model shared by the spectrometer layers.
//
// The processing chain is split into layers, each in its own package:
//
//	l1frames     raw camera frames and column extraction
//	l2signal     per-channel conditioning and temporal filtering
//	l3wavelength pixel to wavelength calibration and resampling
//	l4reference  reference spectra, calibration factors and absorbance
//	l5features   peak and dip extraction
//
// Dependency rule: a layer may depend on this package and on lower layers,
// never on higher ones. The pipeline package wires the layers together.
package spectro
