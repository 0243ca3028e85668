// Package settings holds the mutable device profile: display name, pairing
// policy thresholds, and per-content-type sync toggles. Unlike
// internal/config (resolved once at process start from flags/env/file),
// Settings is loaded on boot and can be mutated and re-persisted for the
// life of the daemon.
package settings

import "time"

// ContentTypeToggles gates which representation content types are synced
// across the network, independent of the clipboard pipeline's own MIME
// handling.
type ContentTypeToggles struct {
	Text        bool
	Image       bool
	Link        bool
	CodeSnippet bool
	RichText    bool
	File        bool
}

// PairingPolicy mirrors the pairing state machine's timing and protocol
// parameters as operator-visible, persisted configuration.
type PairingPolicy struct {
	StepTimeout             time.Duration
	UserVerificationTimeout time.Duration
	SessionTimeout          time.Duration
	MaxRetries              int
	ProtocolVersion         int
}

// Settings is the single settings document for this device.
type Settings struct {
	DeviceName       string
	Pairing          PairingPolicy
	SyncContentTypes ContentTypeToggles
}

// Default returns the settings a freshly initialized device starts with.
// DeviceName is left blank; callers treat a blank name as "Unknown Device".
func Default() Settings {
	return Settings{
		Pairing: PairingPolicy{
			StepTimeout:             30 * time.Second,
			UserVerificationTimeout: 60 * time.Second,
			SessionTimeout:          10 * time.Minute,
			MaxRetries:              3,
			ProtocolVersion:         1,
		},
		SyncContentTypes: ContentTypeToggles{Text: true},
	}
}

// Port is the settings repository contract: load on boot, save on mutation.
// Load on a never-saved database returns Default(), not an error.
type Port interface {
	Load() (Settings, error)
	Save(Settings) error
}

// DisplayName returns s.DeviceName, or "Unknown Device" when unset.
func (s Settings) DisplayName() string {
	if s.DeviceName == "" {
		return "Unknown Device"
	}
	return s.DeviceName
}
