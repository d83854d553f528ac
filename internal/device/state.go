package device

import (
	"context"
	"encoding/json"
	"net/http"
)

// PowerState reports whether the device's display is powered on.
//
// Most firmware serves this endpoint unauthenticated; the token is
// attached when the session holds one, so the call works in every
// pairing state.
func (s *Session) PowerState(ctx context.Context) (bool, error) {
	resp, err := s.dispatcher.Send(ctx, http.MethodGet, "/state/device/power_mode", nil, s.optionalToken())
	if err != nil {
		return false, s.checkAuth(err)
	}

	var mode int
	if err := resp.FirstItemValue(&mode); err != nil {
		return false, err
	}
	return mode == 1, nil
}

// Info is the device self-report returned by Info
type Info struct {
	// CastName is the name the device advertises to cast senders
	CastName string
	// Inputs are the physical input names
	Inputs []string
	// ModelName is the hardware model
	ModelName string
	// SerialNumber is the manufacturing serial
	SerialNumber string
	// FWVersion is the firmware version string
	FWVersion string
	// Chipset is the SoC generation
	Chipset int
	// SettingsRoot is the root cname of the device's settings tree
	SettingsRoot string
}

// infoWire is the on-wire shape of the device info VALUE payload
type infoWire struct {
	CastName     string   `json:"CAST_NAME"`
	Inputs       []string `json:"INPUTS"`
	ModelName    string   `json:"MODEL_NAME"`
	SettingsRoot string   `json:"SETTINGS_ROOT"`
	SystemInfo   struct {
		Chipset      int    `json:"CHIPSET"`
		SerialNumber string `json:"SERIAL_NUMBER"`
		Version      string `json:"VERSION"`
	} `json:"SYSTEM_INFO"`
}

// Info queries the device's self-description: model, serial, firmware,
// inputs, and the root of its settings tree. As a side effect the session
// adopts the reported settings root, so settings paths resolve correctly
// on non-TV device classes (soundbars report a different root).
func (s *Session) Info(ctx context.Context) (*Info, error) {
	token, err := s.authToken()
	if err != nil {
		return nil, err
	}

	resp, err := s.dispatcher.Send(ctx, http.MethodGet, "/state/device/deviceinfo", nil, token)
	if err != nil {
		return nil, s.checkAuth(err)
	}

	var wire infoWire
	if err := resp.FirstItemValue(&wire); err != nil {
		return nil, err
	}

	info := &Info{
		CastName:     wire.CastName,
		Inputs:       wire.Inputs,
		ModelName:    wire.ModelName,
		SerialNumber: wire.SystemInfo.SerialNumber,
		FWVersion:    wire.SystemInfo.Version,
		Chipset:      wire.SystemInfo.Chipset,
		SettingsRoot: wire.SettingsRoot,
	}

	if info.SettingsRoot != "" {
		s.mu.Lock()
		s.settingsRoot = info.SettingsRoot
		s.mu.Unlock()
	}

	return info, nil
}

// Input is one selectable device input
type Input struct {
	// Name is the input identifier used for switching (e.g. "HDMI-1")
	Name string
	// FriendlyName is the user-assigned label
	FriendlyName string
	// Hashval accompanies input-change writes
	Hashval int
}

// inputWire tolerates both VALUE shapes firmware emits: a bare string or
// an object carrying NAME
type inputWire struct {
	Name    string          `json:"NAME"`
	Value   json.RawMessage `json:"VALUE"`
	Hashval int             `json:"HASHVAL"`
}

func (w *inputWire) friendly() string {
	if len(w.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(w.Value, &s); err == nil {
		return s
	}
	var obj struct {
		Name string `json:"NAME"`
	}
	if err := json.Unmarshal(w.Value, &obj); err == nil {
		return obj.Name
	}
	return ""
}

const (
	currentInputPath = "/menu_native/dynamic/tv_settings/devices/current_input"
	inputListPath    = "/menu_native/dynamic/tv_settings/devices/name_input"
)

// CurrentInput returns the input the device is showing
func (s *Session) CurrentInput(ctx context.Context) (*Input, error) {
	token, err := s.authToken()
	if err != nil {
		return nil, err
	}

	resp, err := s.dispatcher.Send(ctx, http.MethodGet, currentInputPath, nil, token)
	if err != nil {
		return nil, s.checkAuth(err)
	}

	var wire inputWire
	if err := resp.DecodeFirstItem(&wire); err != nil {
		return nil, err
	}
	// current_input reports the selected input name in VALUE
	return &Input{Name: wire.friendly(), Hashval: wire.Hashval}, nil
}

// Inputs lists the device's selectable inputs
func (s *Session) Inputs(ctx context.Context) ([]Input, error) {
	token, err := s.authToken()
	if err != nil {
		return nil, err
	}

	resp, err := s.dispatcher.Send(ctx, http.MethodGet, inputListPath, nil, token)
	if err != nil {
		return nil, s.checkAuth(err)
	}

	var wire []inputWire
	if err := resp.DecodeItems(&wire); err != nil {
		return nil, err
	}

	inputs := make([]Input, 0, len(wire))
	for i := range wire {
		inputs = append(inputs, Input{
			Name:         wire[i].Name,
			FriendlyName: wire[i].friendly(),
			Hashval:      wire[i].Hashval,
		})
	}
	return inputs, nil
}

// SetInput switches the device to the named input. The write carries the
// hashval of the current input, which the device requires as proof of a
// fresh read.
func (s *Session) SetInput(ctx context.Context, name string) error {
	token, err := s.authToken()
	if err != nil {
		return err
	}

	current, err := s.CurrentInput(ctx)
	if err != nil {
		return err
	}

	_, err = s.dispatcher.Send(ctx, http.MethodPut, currentInputPath, modifyRequest{
		Request: "MODIFY",
		Hashval: current.Hashval,
		Value:   name,
	}, token)
	return s.checkAuth(err)
}
