// Package controller runs the detection engine on a serial loop and adds the
// inputs that are not key events: trigger recording, fingerprint gestures,
// key maps triggered by other apps and pausing.
//
// Constraint checks and actions run in order on a second loop, so a slow
// action never delays the verdict on the next key event.
//
// Every exported method is safe for concurrent use. Methods that return a
// result block until the loop has handled the request; they must not be
// called from a Listener callback, which runs on the key loop, or from an
// action, which runs on the action loop.
//
// While recording, every key down is consumed and reported to the Listener
// as a RecordedKey. Detection is suspended until recording stops, either
// through StopRecording or after the countdown runs out. A key released
// while recording or paused gets the verdict its press got.
package controller
