// Package pipeline wires the spectrometer layers into a running instrument.
//
// A Coordinator owns one capture goroutine per attached FrameSource and a
// single processing goroutine (Run). Capture hands frames over a bounded
// drop-oldest inbox; processing publishes each result into a latest-wins
// snapshot cell that any number of readers may poll. Configuration updates
// and user commands are validated by the caller's goroutine and applied by
// the processing goroutine between frames.
package pipeline
