// Package l1frames owns Layer 1 (Frames) of the spectrometer chain.
//
// Responsibilities: the FrameSource contract, synthetic and replay sources,
// and reduction of a 2D frame to one curve per colour channel.
//
// Dependency rule: L1 depends only on the spectro data model.
package l1frames
