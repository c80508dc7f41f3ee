package config

import "sync/atomic"

// Settings are the operator toggles.
type Settings struct {
	MonitorActive   bool   `json:"monitor_active"`
	MaintenanceMode bool   `json:"maintenance_mode"`
	InjectBranding  bool   `json:"inject_branding"`
	ChannelID       string `json:"channel_id,omitempty"`
}

// DefaultSettings returns monitoring on, maintenance off, branding on.
func DefaultSettings() Settings {
	return Settings{
		MonitorActive:  true,
		InjectBranding: true,
	}
}

// Toggles holds Settings that may change while a long-running command is
// active. It is safe for concurrent use.
type Toggles struct {
	monitor     atomic.Bool
	maintenance atomic.Bool
	branding    atomic.Bool
}

// NewToggles creates Toggles from s.
func NewToggles(s Settings) *Toggles {
	t := &Toggles{}
	t.Apply(s)
	return t
}

// Apply replaces every toggle with the values in s.
func (t *Toggles) Apply(s Settings) {
	t.monitor.Store(s.MonitorActive)
	t.maintenance.Store(s.MaintenanceMode)
	t.branding.Store(s.InjectBranding)
}

// MonitorActive reports whether the poller should fetch index pages.
func (t *Toggles) MonitorActive() bool { return t.monitor.Load() }

// MaintenanceMode reports whether new work should be refused.
func (t *Toggles) MaintenanceMode() bool { return t.maintenance.Load() }

// InjectBranding reports whether branding files are added to archives.
func (t *Toggles) InjectBranding() bool { return t.branding.Load() }
