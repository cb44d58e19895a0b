// Package l5features owns Layer 5 (Features) of the spectrometer chain.
//
// Responsibilities: prominence-filtered peak and dip extraction from a
// finished spectrum. Extraction is stateless and runs once per frame.
//
// Dependency rule: L5 may depend on L1-L4.
package l5features
