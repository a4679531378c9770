package session

import (
	"strings"

	"github.com/dropDatabas3/hablas/internal/domain/repository"
)

// DetectDeviceType clasifica el User-Agent de forma aproximada.
func DetectDeviceType(userAgent string) string {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	switch {
	case ua == "":
		return repository.DeviceUnknown
	case strings.Contains(ua, "ipad"), strings.Contains(ua, "tablet"):
		return repository.DeviceTablet
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "android"),
		strings.Contains(ua, "iphone"), strings.Contains(ua, "ipod"):
		return repository.DeviceMobile
	default:
		return repository.DeviceDesktop
	}
}

// NewDeviceInfo arma el DeviceInfo de una sesión nueva.
func NewDeviceInfo(userAgent, ip string) repository.DeviceInfo {
	return repository.DeviceInfo{
		UserAgent:  userAgent,
		IPAddress:  ip,
		DeviceType: DetectDeviceType(userAgent),
	}
}
