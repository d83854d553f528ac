// Package config persists CLI-side state for SmartCast devices.
//
// The control protocol core never stores credentials; token persistence is
// the caller's job, and the CLI is that caller. The registry is a YAML file
// under the platform config directory holding the pairing identity (a
// stable client id devices bind tokens to), per-device entries keyed by
// UUID with the last known address and issued auth token, and preferences.
//
//	registry, err := config.LoadRegistry()
//	ident := registry.ClientIdentity("smartcast-ctl")
//	dev := registry.EnsureDevice(desc.UUID)
//	dev.AuthToken = sess.Token()
//	registry.Save()
//
// Saves are atomic (temp file + rename) and the file is created with
// user-only permissions since it holds pairing tokens.
package config
