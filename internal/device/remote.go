package device

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// KeyAction is the interaction applied to a virtual remote key
type KeyAction string

const (
	// KeyDown holds the key
	KeyDown KeyAction = "KEYDOWN"
	// KeyUp releases a held key
	KeyUp KeyAction = "KEYUP"
	// KeyPress clicks the key once
	KeyPress KeyAction = "KEYPRESS"
)

// Key is a virtual remote control key
type Key int

// Virtual remote keys. Codeset/code pairs follow the device's key command
// tables; see keyCodes.
const (
	KeySeekFwd Key = iota
	KeySeekBack
	KeyPause
	KeyPlay
	KeyDownArrow
	KeyLeftArrow
	KeyUpArrow
	KeyRightArrow
	KeyOK
	KeyBack
	KeyHomeScreen
	KeyCCToggle
	KeyInfo
	KeyMenu
	KeyHome
	KeyVolumeDown
	KeyVolumeUp
	KeyMuteOff
	KeyMuteOn
	KeyMuteToggle
	KeyPicMode
	KeyPicSize
	KeyInputNext
	KeyChannelDown
	KeyChannelUp
	KeyChannelPrev
	KeyExit
	KeyPowerOff
	KeyPowerOn
	KeyPowerToggle
)

// keyCode is a codeset/code pair from the device's key tables
type keyCode struct {
	codeset int
	code    int
}

var keyCodes = map[Key]keyCode{
	KeySeekFwd:     {2, 0},
	KeySeekBack:    {2, 1},
	KeyPause:       {2, 2},
	KeyPlay:        {2, 3},
	KeyDownArrow:   {3, 0},
	KeyLeftArrow:   {3, 1},
	KeyUpArrow:     {3, 8},
	KeyRightArrow:  {3, 7},
	KeyOK:          {3, 2},
	KeyBack:        {4, 0},
	KeyHomeScreen:  {4, 3},
	KeyCCToggle:    {4, 4},
	KeyInfo:        {4, 6},
	KeyMenu:        {4, 8},
	KeyHome:        {4, 15},
	KeyVolumeDown:  {5, 0},
	KeyVolumeUp:    {5, 1},
	KeyMuteOff:     {5, 2},
	KeyMuteOn:      {5, 3},
	KeyMuteToggle:  {5, 4},
	KeyPicMode:     {6, 0},
	KeyPicSize:     {6, 2},
	KeyInputNext:   {7, 1},
	KeyChannelDown: {8, 0},
	KeyChannelUp:   {8, 1},
	KeyChannelPrev: {8, 2},
	KeyExit:        {9, 0},
	KeyPowerOff:    {11, 0},
	KeyPowerOn:     {11, 1},
	KeyPowerToggle: {11, 2},
}

var keyNames = map[string]Key{
	"seek-fwd":     KeySeekFwd,
	"seek-back":    KeySeekBack,
	"pause":        KeyPause,
	"play":         KeyPlay,
	"down":         KeyDownArrow,
	"left":         KeyLeftArrow,
	"up":           KeyUpArrow,
	"right":        KeyRightArrow,
	"ok":           KeyOK,
	"back":         KeyBack,
	"home-screen":  KeyHomeScreen,
	"cc":           KeyCCToggle,
	"info":         KeyInfo,
	"menu":         KeyMenu,
	"home":         KeyHome,
	"volume-down":  KeyVolumeDown,
	"volume-up":    KeyVolumeUp,
	"mute-off":     KeyMuteOff,
	"mute-on":      KeyMuteOn,
	"mute":         KeyMuteToggle,
	"pic-mode":     KeyPicMode,
	"pic-size":     KeyPicSize,
	"input-next":   KeyInputNext,
	"channel-down": KeyChannelDown,
	"channel-up":   KeyChannelUp,
	"channel-prev": KeyChannelPrev,
	"exit":         KeyExit,
	"power-off":    KeyPowerOff,
	"power-on":     KeyPowerOn,
	"power":        KeyPowerToggle,
}

// ParseKey resolves a key by its CLI name (e.g. "volume-up")
func ParseKey(name string) (Key, error) {
	key, ok := keyNames[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown key %q", name)
	}
	return key, nil
}

// KeyNames lists the recognized key names, for CLI help output
func KeyNames() []string {
	names := make([]string, 0, len(keyNames))
	for name := range keyNames {
		names = append(names, name)
	}
	return names
}

// keyEvent is one entry of a key command's KEYLIST
type keyEvent struct {
	Codeset int    `json:"CODESET"`
	Code    int    `json:"CODE"`
	Action  string `json:"ACTION"`
}

// keyCommand is the body of a virtual remote request
type keyCommand struct {
	KeyList []keyEvent `json:"KEYLIST"`
}

// SendKey sends one virtual remote key interaction.
//
// Fire-and-forget: success means the device accepted the command, not that
// any physical effect (volume change, power state) completed.
func (s *Session) SendKey(ctx context.Context, key Key, action KeyAction) error {
	return s.SendKeys(ctx, []Key{key}, action)
}

// Press clicks a key once
func (s *Session) Press(ctx context.Context, key Key) error {
	return s.SendKey(ctx, key, KeyPress)
}

// SendKeys sends one interaction for a sequence of keys in a single request
func (s *Session) SendKeys(ctx context.Context, keys []Key, action KeyAction) error {
	token, err := s.authToken()
	if err != nil {
		return err
	}

	events := make([]keyEvent, 0, len(keys))
	for _, key := range keys {
		kc, ok := keyCodes[key]
		if !ok {
			return fmt.Errorf("unknown key code %d", key)
		}
		events = append(events, keyEvent{Codeset: kc.codeset, Code: kc.code, Action: string(action)})
	}

	_, err = s.dispatcher.Send(ctx, http.MethodPut, "/key_command/", keyCommand{KeyList: events}, token)
	return s.checkAuth(err)
}
