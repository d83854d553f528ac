package device

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
)

// ValueKind is the closed set of value variants a settings node can hold.
// The device reports loosely validated, string-typed JSON; decoding into a
// small closed set keeps the client-side write checks exhaustive.
type ValueKind int

const (
	// KindMenu is a group node containing further nodes; not writable
	KindMenu ValueKind = iota
	// KindSlider is an integer with a declared min/max/increment
	KindSlider
	// KindList is an enum-string with a declared element list
	KindList
	// KindXList is an extended enum-string; elements arrive separately
	KindXList
	// KindValue is a plain mutable value (boolean, number, or string)
	KindValue
	// KindOther is a node type this client does not know; not writable
	KindOther
)

// String returns the kind name
func (k ValueKind) String() string {
	switch k {
	case KindMenu:
		return "menu"
	case KindSlider:
		return "slider"
	case KindList:
		return "list"
	case KindXList:
		return "xlist"
	case KindValue:
		return "value"
	default:
		return "other"
	}
}

// kindFromWire maps the device's TYPE strings to value kinds
func kindFromWire(t string) ValueKind {
	switch t {
	case "T_MENU_V1":
		return KindMenu
	case "T_VALUE_ABS_V1":
		return KindSlider
	case "T_LIST_V1":
		return KindList
	case "T_LIST_X_V1":
		return KindXList
	case "T_VALUE_V1":
		return KindValue
	default:
		return KindOther
	}
}

// SliderInfo describes the range of a slider node
type SliderInfo struct {
	DecMarker string `json:"DECMARKER"`
	IncMarker string `json:"INCMARKER"`
	Increment int    `json:"INCREMENT"`
	Max       int    `json:"MAXIMUM"`
	Min       int    `json:"MINIMUM"`
	Center    int    `json:"CENTER"`
}

// SettingsNode is one named, typed, addressable value in the device's
// hierarchical settings tree. Nodes are read-only snapshots: writing a
// setting never mutates the node a caller holds.
type SettingsNode struct {
	// CName is the node's path segment identifier
	CName string
	// Name is the display name
	Name string
	// Kind is the decoded value variant
	Kind ValueKind
	// Value is the current value as reported (nil for menus)
	Value json.RawMessage
	// Hashval must accompany writes; the device uses it to reject
	// writes against a stale read
	Hashval int
	// Hidden and ReadOnly mirror the device's node flags
	Hidden   bool
	ReadOnly bool
	// Elements lists the allowed values for list nodes, when the device
	// inlines them
	Elements []string
	// Slider carries the range for slider nodes, when known
	Slider *SliderInfo

	// path is the full tree path of this node including parents
	path string
}

// Path returns the node's full settings-tree path
func (n *SettingsNode) Path() string {
	return n.path
}

// StringValue returns the current value as a string, for display
func (n *SettingsNode) StringValue() string {
	if len(n.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(n.Value, &s); err == nil {
		return s
	}
	return string(n.Value)
}

// settingsNodeWire is the on-wire shape of a settings node. Boolean flags
// arrive as real booleans or as "TRUE"/"FALSE" strings depending on
// firmware, hence flexBool.
type settingsNodeWire struct {
	CName      string          `json:"CNAME"`
	Name       string          `json:"NAME"`
	Type       string          `json:"TYPE"`
	Value      json.RawMessage `json:"VALUE"`
	Hashval    *int            `json:"HASHVAL"`
	Hidden     flexBool        `json:"HIDDEN"`
	ReadOnly   flexBool        `json:"READONLY"`
	Elements   []string        `json:"ELEMENTS"`
	SliderInfo *SliderInfo     `json:"SLIDER_INFO"`
}

// flexBool decodes true/false, "TRUE"/"FALSE", and absent fields
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("neither boolean nor string: %s", data)
	}
	switch strings.ToLower(s) {
	case "true":
		*b = true
	case "false", "":
		*b = false
	default:
		return fmt.Errorf("not a boolean: %q", s)
	}
	return nil
}

// settingsEndpoint builds the dynamic settings endpoint for a tree path
func (s *Session) settingsEndpoint(path string) string {
	s.mu.RLock()
	root := s.settingsRoot
	s.mu.RUnlock()

	endpoint := "/menu_native/dynamic/" + root
	if path = strings.Trim(path, "/"); path != "" {
		endpoint += "/" + path
	}
	return endpoint
}

// ReadSettings reads the settings nodes at a tree path. An empty path
// reads the top-level groups. The call is idempotent; nodes are fresh
// snapshots on every read, never cached.
func (s *Session) ReadSettings(ctx context.Context, path string) ([]SettingsNode, error) {
	token, err := s.authToken()
	if err != nil {
		return nil, err
	}

	resp, err := s.dispatcher.Send(ctx, http.MethodGet, s.settingsEndpoint(path), nil, token)
	if err != nil {
		return nil, s.checkAuth(err)
	}

	var wire []settingsNodeWire
	if err := resp.DecodeItems(&wire); err != nil {
		return nil, err
	}

	prefix := strings.Trim(path, "/")
	nodes := make([]SettingsNode, 0, len(wire))
	for _, w := range wire {
		node := SettingsNode{
			CName:    w.CName,
			Name:     w.Name,
			Kind:     kindFromWire(w.Type),
			Value:    w.Value,
			Hidden:   bool(w.Hidden),
			ReadOnly: bool(w.ReadOnly),
			Elements: w.Elements,
			Slider:   w.SliderInfo,
			path:     w.CName,
		}
		if w.Hashval != nil {
			node.Hashval = *w.Hashval
		}
		if prefix != "" {
			node.path = prefix + "/" + w.CName
		}
		nodes = append(nodes, node)
	}

	return nodes, nil
}

// FindSetting reads the node at a full tree path: the parent group is
// fetched and the final segment looked up by cname.
func (s *Session) FindSetting(ctx context.Context, path string) (*SettingsNode, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, &InvalidValueError{Setting: path, Reason: "empty settings path"}
	}

	parent := ""
	leaf := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		parent, leaf = path[:i], path[i+1:]
	}

	nodes, err := s.ReadSettings(ctx, parent)
	if err != nil {
		return nil, err
	}
	for i := range nodes {
		if strings.EqualFold(nodes[i].CName, leaf) {
			return &nodes[i], nil
		}
	}
	return nil, &protocolNotFoundError{path: path}
}

// protocolNotFoundError reports a settings path the device does not expose
type protocolNotFoundError struct {
	path string
}

func (e *protocolNotFoundError) Error() string {
	return fmt.Sprintf("no setting at path %q", e.path)
}

// SliderDetails fetches the range information for a slider node from the
// static settings tree. Some firmware inlines SLIDER_INFO in dynamic
// reads; for the rest this fills in what WriteSetting validates against.
func (s *Session) SliderDetails(ctx context.Context, node *SettingsNode) (*SliderInfo, error) {
	token, err := s.authToken()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	root := s.settingsRoot
	s.mu.RUnlock()

	endpoint := "/menu_native/static/" + root + "/" + node.path
	resp, err := s.dispatcher.Send(ctx, http.MethodGet, endpoint, nil, token)
	if err != nil {
		return nil, s.checkAuth(err)
	}

	var wire struct {
		SliderInfo *SliderInfo `json:"SLIDER_INFO"`
	}
	if err := resp.DecodeFirstItem(&wire); err != nil {
		return nil, err
	}
	return wire.SliderInfo, nil
}

// modifyRequest is the body of a settings write
type modifyRequest struct {
	Request string `json:"REQUEST"`
	Hashval int    `json:"HASHVAL"`
	Value   any    `json:"VALUE"`
}

// WriteSetting writes a new value to a settings node.
//
// The value is validated client-side against the node's declared kind and
// constraints before any request is sent; a failing value returns
// InvalidValueError with zero network traffic. The device may still reject
// an in-range value for constraints the client cannot pre-check (cross-
// field dependencies), surfaced as a DeviceError.
//
// Exactly one PUT is issued on success. The node the caller holds is not
// mutated; re-read the path to observe the new value.
func (s *Session) WriteSetting(ctx context.Context, node *SettingsNode, value any) error {
	token, err := s.authToken()
	if err != nil {
		return err
	}

	if err := validateValue(node, value); err != nil {
		return err
	}

	_, err = s.dispatcher.Send(ctx, http.MethodPut, s.settingsEndpoint(node.path), modifyRequest{
		Request: "MODIFY",
		Hashval: node.Hashval,
		Value:   value,
	}, token)
	return s.checkAuth(err)
}

// WriteSettingPath is WriteSetting addressed by tree path: the node is
// fetched first so its declared type and hashval are known. For slider
// nodes whose dynamic read did not inline SLIDER_INFO, the range is
// fetched from the static tree so the write is validated against it.
func (s *Session) WriteSettingPath(ctx context.Context, path string, value any) error {
	node, err := s.FindSetting(ctx, path)
	if err != nil {
		return err
	}
	if node.Kind == KindSlider && node.Slider == nil {
		info, err := s.SliderDetails(ctx, node)
		if err != nil {
			return err
		}
		node.Slider = info
	}
	return s.WriteSetting(ctx, node, value)
}

// validateValue checks value against the node's declared kind and
// constraints. Exhaustive over ValueKind.
func validateValue(node *SettingsNode, value any) error {
	if node.ReadOnly {
		return &InvalidValueError{Setting: node.CName, Reason: "setting is read-only"}
	}

	switch node.Kind {
	case KindMenu:
		return &InvalidValueError{Setting: node.CName, Reason: "node is a menu, not a value"}

	case KindOther:
		return &InvalidValueError{Setting: node.CName, Reason: "unknown value type, refusing to write"}

	case KindSlider:
		n, ok := asInt(value)
		if !ok {
			return &InvalidValueError{Setting: node.CName, Reason: fmt.Sprintf("slider requires an integer, got %T", value)}
		}
		if node.Slider != nil {
			if n < node.Slider.Min || n > node.Slider.Max {
				return &InvalidValueError{
					Setting: node.CName,
					Reason:  fmt.Sprintf("%d outside range [%d, %d]", n, node.Slider.Min, node.Slider.Max),
				}
			}
		}
		return nil

	case KindList, KindXList:
		s, ok := value.(string)
		if !ok {
			return &InvalidValueError{Setting: node.CName, Reason: fmt.Sprintf("list requires a string, got %T", value)}
		}
		if len(node.Elements) == 0 {
			// XList elements arrive separately; nothing to check against
			return nil
		}
		for _, e := range node.Elements {
			if strings.EqualFold(e, s) {
				return nil
			}
		}
		return &InvalidValueError{Setting: node.CName, Reason: fmt.Sprintf("%q not in allowed values %v", s, node.Elements)}

	case KindValue:
		switch value.(type) {
		case bool, string, int, int64, float64:
			return nil
		default:
			return &InvalidValueError{Setting: node.CName, Reason: fmt.Sprintf("unsupported value type %T", value)}
		}

	default:
		return &InvalidValueError{Setting: node.CName, Reason: "unknown value kind"}
	}
}

// asInt accepts the integer shapes a caller plausibly passes
func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}
