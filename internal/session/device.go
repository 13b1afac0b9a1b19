package session

import (
	"github.com/mssola/useragent"

	"veriflow/pkg/domain"
)

// ProbeDevice classifies the device from its User-Agent plus the boolean
// capability results the client-side probes report. The engines only ever see
// the resulting DeviceInfo, never the raw UA string logic.
func ProbeDevice(ua string, hasPlatformAuthenticator, hasCamera bool) DeviceInfo {
	info := DeviceInfo{
		Kind:                     domain.DeviceUnknown,
		HasPlatformAuthenticator: hasPlatformAuthenticator,
		HasCamera:                hasCamera,
		UserAgent:                ua,
	}
	if ua == "" {
		return info
	}

	parsed := useragent.New(ua)
	if parsed.Bot() {
		return info
	}
	if parsed.Mobile() {
		info.Kind = domain.DeviceMobile
	} else {
		info.Kind = domain.DeviceDesktop
	}
	return info
}
