// Package config loads the keymapper configuration and key map files.
//
// Settings come from three layers, later ones winning: built-in defaults,
// a TOML file, and KEYMAPPER_ environment variables:
//
//	[detection]
//	long_press_delay = "500ms"
//	double_press_delay = "300ms"
//	sequence_trigger_timeout = "1s"
//
//	[recording]
//	ticks = 5
//	tick = "1s"
//
//	[actions]
//	timeout = "10s"
//
//	[logging]
//	level = "info"
//	format = "console"
//	metrics_interval = "0s"
//
//	[input]
//	source = "evdev"
//	devices = ["/dev/input/event3"]
//	grab = false
//
//	[keymaps]
//	path = "keymaps.yaml"
//	watch = true
//
//	[device]
//	orientation = "portrait"
//	foreground_app = ""
//	screen_on = true
//
// Key maps live in their own YAML or TOML file, decoded by LoadKeyMaps into
// a mapping.Snapshot. A Watcher reloads that file when it changes.
package config
