package source

import "github.com/dshills/keymapper/internal/mapping"

// linuxToAndroid maps Linux input event codes (KEY_*) to Android key codes.
var linuxToAndroid = map[uint16]int{
	1:   mapping.KeyCodeEscape,
	12:  69, // MINUS
	13:  70, // EQUALS
	14:  67, // DEL
	15:  61, // TAB
	26:  71, // LEFT_BRACKET
	27:  72, // RIGHT_BRACKET
	28:  mapping.KeyCodeEnter,
	29:  113, // CTRL_LEFT
	39:  74,  // SEMICOLON
	40:  75,  // APOSTROPHE
	41:  68,  // GRAVE
	42:  59,  // SHIFT_LEFT
	43:  73,  // BACKSLASH
	51:  55,  // COMMA
	52:  56,  // PERIOD
	53:  76,  // SLASH
	54:  60,  // SHIFT_RIGHT
	56:  57,  // ALT_LEFT
	57:  mapping.KeyCodeSpace,
	58:  115, // CAPS_LOCK
	87:  141, // F11
	88:  142, // F12
	97:  114, // CTRL_RIGHT
	100: 58,  // ALT_RIGHT
	102: 122, // MOVE_HOME
	103: mapping.KeyCodeDpadUp,
	104: 92, // PAGE_UP
	105: mapping.KeyCodeDpadLeft,
	106: mapping.KeyCodeDpadRight,
	107: 123, // MOVE_END
	108: mapping.KeyCodeDpadDown,
	109: 93,  // PAGE_DOWN
	110: 124, // INSERT
	111: 112, // FORWARD_DEL
	113: mapping.KeyCodeVolumeMute,
	114: mapping.KeyCodeVolumeDown,
	115: mapping.KeyCodeVolumeUp,
	116: mapping.KeyCodePower,
	125: 117, // META_LEFT
	126: 118, // META_RIGHT
	139: 82,  // MENU
	142: 223, // SLEEP
	143: 224, // WAKEUP
	158: mapping.KeyCodeBack,
	163: mapping.KeyCodeMediaNext,
	164: 85, // MEDIA_PLAY_PAUSE
	165: mapping.KeyCodeMediaPrevious,
	166: 86, // MEDIA_STOP
	168: 89, // MEDIA_REWIND
	172: mapping.KeyCodeHome,
	200: mapping.KeyCodeMediaPlay,
	201: mapping.KeyCodeMediaPause,
	208: 90, // MEDIA_FAST_FORWARD
	212: mapping.KeyCodeCamera,
	217: 84,  // SEARCH
	224: 220, // BRIGHTNESS_DOWN
	225: 221, // BRIGHTNESS_UP
	226: mapping.KeyCodeHeadsetHook,
	248: 91, // MUTE
	352: mapping.KeyCodeDpadCenter,
}

var androidToLinux map[int]uint16

func init() {
	// Digits: KEY_1..KEY_9 are 2..10 and KEY_0 is 11; Android 0-9 are 7-16.
	for i := 1; i <= 9; i++ {
		linuxToAndroid[uint16(1+i)] = 7 + i
	}
	linuxToAndroid[11] = 7

	// Letters follow the QWERTY rows.
	rows := []struct {
		first uint16
		keys  string
	}{
		{16, "QWERTYUIOP"},
		{30, "ASDFGHJKL"},
		{44, "ZXCVBNM"},
	}
	for _, row := range rows {
		for i, r := range row.keys {
			linuxToAndroid[row.first+uint16(i)] = mapping.KeyCodeA + int(r-'A')
		}
	}

	// F1-F10 are contiguous.
	for i := 0; i < 10; i++ {
		linuxToAndroid[uint16(59+i)] = 131 + i
	}

	androidToLinux = make(map[int]uint16, len(linuxToAndroid))
	for linux, android := range linuxToAndroid {
		if prev, ok := androidToLinux[android]; !ok || linux < prev {
			androidToLinux[android] = linux
		}
	}
}

// AndroidKeyCode converts a Linux key code. Unknown codes map to
// KeyCodeUnknown and false.
func AndroidKeyCode(linux uint16) (int, bool) {
	code, ok := linuxToAndroid[linux]
	if !ok {
		return mapping.KeyCodeUnknown, false
	}
	return code, true
}

// LinuxKeyCode converts an Android key code back to a Linux key code.
func LinuxKeyCode(android int) (uint16, bool) {
	code, ok := androidToLinux[android]
	return code, ok
}
