package auth

import (
	"github.com/mileusna/useragent"

	"github.com/verdantlabs/verdant/internal/domain"
)

// ParseDevice extracts device metadata from a User-Agent string. Parsing
// happens once at session creation; the result is stored opaquely afterwards.
func ParseDevice(userAgent string) domain.DeviceInfo {
	if userAgent == "" {
		return domain.DeviceInfo{}
	}

	ua := useragent.Parse(userAgent)
	return domain.DeviceInfo{
		Browser:        ua.Name,
		BrowserVersion: ua.Version,
		OS:             ua.OS,
		OSVersion:      ua.OSVersion,
		Device:         ua.Device,
		Mobile:         ua.Mobile,
		Tablet:         ua.Tablet,
		Desktop:        ua.Desktop,
		Bot:            ua.Bot,
	}
}
