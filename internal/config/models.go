package config

import "time"

// Registry represents the entire user configuration file.
// This stores the pairing identity, per-device state, and preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Client      *ClientIdentity    `yaml:"client,omitempty"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by device UUID
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// ClientIdentity is the identity presented to devices during pairing.
// The ID must stay stable across runs: devices issue tokens bound to it,
// and a changed ID invalidates every saved pairing.
type ClientIdentity struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Device represents the saved state for a single SmartCast device,
// keyed by the device's UUID in the Registry.
type Device struct {
	Nickname  string    `yaml:"nickname,omitempty"`   // User-friendly name
	LastIP    string    `yaml:"last_ip,omitempty"`    // Last known IP address
	Port      int       `yaml:"port,omitempty"`       // Control API port
	AuthToken string    `yaml:"auth_token,omitempty"` // Pairing token, set after a successful pair
	LastSeen  time.Time `yaml:"last_seen,omitempty"`  // Last discovery/connection time
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DiscoverTimeout int `yaml:"discover_timeout"` // SSDP discovery timeout in seconds
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Devices: make(map[string]*Device),
		Preferences: &Preferences{
			DiscoverTimeout: 3,
		},
	}
}

// GetDevice retrieves device state by UUID.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(uuid string) *Device {
	return r.Devices[uuid]
}

// EnsureDevice ensures a device entry exists in the registry.
// If the device doesn't exist, creates a new entry with default values.
// Returns the device entry (existing or newly created).
func (r *Registry) EnsureDevice(uuid string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	if r.Devices[uuid] == nil {
		r.Devices[uuid] = &Device{}
	}
	return r.Devices[uuid]
}

// ForgetDevice removes a device entry, discarding its saved token.
func (r *Registry) ForgetDevice(uuid string) {
	delete(r.Devices, uuid)
}
