// Package source reads key events from input devices and feeds them to a
// Sink, usually the controller.
//
// Evdev reads Linux input devices and, when grabbing, forwards every event
// the sink does not consume to a virtual clone of the device. Terminal reads
// keys from a tcell screen for trying out key maps without hardware.
// Group runs several sources at once.
package source
