package domain

import (
	"time"
)

// DeviceInfo is the parsed client metadata captured once at session creation.
// It is stored as an opaque JSONB blob and never re-parsed afterwards.
type DeviceInfo struct {
	Browser        string `json:"browser,omitempty"`
	BrowserVersion string `json:"browser_version,omitempty"`
	OS             string `json:"os,omitempty"`
	OSVersion      string `json:"os_version,omitempty"`
	Device         string `json:"device,omitempty"`
	Mobile         bool   `json:"mobile"`
	Tablet         bool   `json:"tablet"`
	Desktop        bool   `json:"desktop"`
	Bot            bool   `json:"bot"`
}

// Session is one authenticated device. A user holds at most one session row
// per device; refreshing rotates the token pair in place.
type Session struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	RefreshToken string     `json:"-"`
	AccessToken  string     `json:"-"`
	UserAgent    string     `json:"user_agent"`
	IPAddress    string     `json:"ip_address"`
	DeviceInfo   DeviceInfo `json:"device_info"`
	IsActive     bool       `json:"is_active"`
	ExpiresAt    time.Time  `json:"expires_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Expired reports whether the session is past its expiry at the given instant.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
