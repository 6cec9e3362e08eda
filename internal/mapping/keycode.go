package mapping

import (
	"fmt"
	"strconv"
	"strings"
)

// Android key codes used by tests, default configs and the input sources.
const (
	KeyCodeUnknown       = 0
	KeyCodeHome          = 3
	KeyCodeBack          = 4
	KeyCodeDpadUp        = 19
	KeyCodeDpadDown      = 20
	KeyCodeDpadLeft      = 21
	KeyCodeDpadRight     = 22
	KeyCodeDpadCenter    = 23
	KeyCodeVolumeUp      = 24
	KeyCodeVolumeDown    = 25
	KeyCodePower         = 26
	KeyCodeCamera        = 27
	KeyCodeA             = 29
	KeyCodeB             = 30
	KeyCodeC             = 31
	KeyCodeD             = 32
	KeyCodeSpace         = 62
	KeyCodeEnter         = 66
	KeyCodeHeadsetHook   = 79
	KeyCodeMediaPlay     = 126
	KeyCodeMediaPause    = 127
	KeyCodeEscape        = 111
	KeyCodeVolumeMute    = 164
	KeyCodeMediaNext     = 87
	KeyCodeMediaPrevious = 88
)

var keyCodeNames = map[int]string{
	0:   "UNKNOWN",
	1:   "SOFT_LEFT",
	2:   "SOFT_RIGHT",
	3:   "HOME",
	4:   "BACK",
	5:   "CALL",
	6:   "ENDCALL",
	17:  "STAR",
	18:  "POUND",
	19:  "DPAD_UP",
	20:  "DPAD_DOWN",
	21:  "DPAD_LEFT",
	22:  "DPAD_RIGHT",
	23:  "DPAD_CENTER",
	24:  "VOLUME_UP",
	25:  "VOLUME_DOWN",
	26:  "POWER",
	27:  "CAMERA",
	28:  "CLEAR",
	55:  "COMMA",
	56:  "PERIOD",
	57:  "ALT_LEFT",
	58:  "ALT_RIGHT",
	59:  "SHIFT_LEFT",
	60:  "SHIFT_RIGHT",
	61:  "TAB",
	62:  "SPACE",
	64:  "EXPLORER",
	65:  "ENVELOPE",
	66:  "ENTER",
	67:  "DEL",
	68:  "GRAVE",
	69:  "MINUS",
	70:  "EQUALS",
	71:  "LEFT_BRACKET",
	72:  "RIGHT_BRACKET",
	73:  "BACKSLASH",
	74:  "SEMICOLON",
	75:  "APOSTROPHE",
	76:  "SLASH",
	77:  "AT",
	79:  "HEADSETHOOK",
	80:  "FOCUS",
	82:  "MENU",
	83:  "NOTIFICATION",
	84:  "SEARCH",
	85:  "MEDIA_PLAY_PAUSE",
	86:  "MEDIA_STOP",
	87:  "MEDIA_NEXT",
	88:  "MEDIA_PREVIOUS",
	89:  "MEDIA_REWIND",
	90:  "MEDIA_FAST_FORWARD",
	91:  "MUTE",
	92:  "PAGE_UP",
	93:  "PAGE_DOWN",
	111: "ESCAPE",
	112: "FORWARD_DEL",
	113: "CTRL_LEFT",
	114: "CTRL_RIGHT",
	115: "CAPS_LOCK",
	117: "META_LEFT",
	118: "META_RIGHT",
	122: "MOVE_HOME",
	123: "MOVE_END",
	124: "INSERT",
	126: "MEDIA_PLAY",
	127: "MEDIA_PAUSE",
	164: "VOLUME_MUTE",
	219: "ASSIST",
	220: "BRIGHTNESS_DOWN",
	221: "BRIGHTNESS_UP",
	223: "SLEEP",
	224: "WAKEUP",
	231: "VOICE_ASSIST",
}

var keyCodesByName map[string]int

func init() {
	// Digits 0-9 are 7-16, letters A-Z are 29-54, F1-F12 are 131-142.
	for i := 0; i <= 9; i++ {
		keyCodeNames[7+i] = strconv.Itoa(i)
	}
	for i := 0; i < 26; i++ {
		keyCodeNames[29+i] = string(rune('A' + i))
	}
	for i := 1; i <= 12; i++ {
		keyCodeNames[130+i] = "F" + strconv.Itoa(i)
	}

	keyCodesByName = make(map[string]int, len(keyCodeNames))
	for code, name := range keyCodeNames {
		keyCodesByName[name] = code
	}
}

// KeyCodeName returns the Android name of a key code without the
// KEYCODE_ prefix, or the decimal code if it has no name.
func KeyCodeName(code int) string {
	if name, ok := keyCodeNames[code]; ok {
		return name
	}
	return strconv.Itoa(code)
}

// ParseKeyCode accepts a key code name ("VOLUME_DOWN", "KEYCODE_VOLUME_DOWN",
// case-insensitive) or a decimal number. Single digits are names, so "5"
// is the key 5 (code 12); use "#5" for the raw code 5.
func ParseKeyCode(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty key code")
	}

	if raw, ok := strings.CutPrefix(s, "#"); ok {
		return parseRawKeyCode(s, raw)
	}

	name := strings.TrimPrefix(strings.ToUpper(s), "KEYCODE_")
	if code, ok := keyCodesByName[name]; ok {
		return code, nil
	}
	return parseRawKeyCode(s, s)
}

func parseRawKeyCode(orig, raw string) (int, error) {
	code, err := strconv.Atoi(raw)
	if err != nil || code < 0 {
		return 0, fmt.Errorf("unknown key code %q", orig)
	}
	return code, nil
}
