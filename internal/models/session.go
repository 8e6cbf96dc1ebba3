package models

import (
	"strings"
	"time"
)

// Device classes recognized by ClassifyDevice
const (
	DeviceClassDesktop = "desktop"
	DeviceClassMobile  = "mobile"
	DeviceClassTablet  = "tablet"
)

// DeviceInfo describes the client device a session was opened from,
// derived from the User-Agent header at login time.
type DeviceInfo struct {
	Browser     string `json:"browser"`
	OS          string `json:"os"`
	DeviceClass string `json:"device_class"`
}

// ActiveSession represents one live authenticated session.
type ActiveSession struct {
	SessionToken   string     `json:"session_token"`
	UserID         string     `json:"user_id"`
	Email          string     `json:"email"`
	Device         DeviceInfo `json:"device"`
	IPAddress      string     `json:"ip_address"`
	UserAgent      string     `json:"user_agent"`
	CreatedAt      time.Time  `json:"created_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
}

// ClassifyDevice derives DeviceInfo from a raw User-Agent string.
// Tablet detection must run before the mobile check because tablet
// user agents usually also contain "Mobile".
func ClassifyDevice(userAgent string) DeviceInfo {
	ua := strings.ToLower(userAgent)

	info := DeviceInfo{
		Browser:     classifyBrowser(ua),
		OS:          classifyOS(ua),
		DeviceClass: DeviceClassDesktop,
	}

	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		info.DeviceClass = DeviceClassTablet
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		info.DeviceClass = DeviceClassMobile
	}

	return info
}

func classifyBrowser(ua string) string {
	switch {
	case strings.Contains(ua, "edg/") || strings.Contains(ua, "edge"):
		return "Edge"
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "chrome"):
		return "Chrome"
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "safari"):
		return "Safari"
	case ua == "":
		return "Unknown"
	default:
		return "Other"
	}
}

func classifyOS(ua string) string {
	switch {
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad") || strings.Contains(ua, "ios"):
		return "iOS"
	case strings.Contains(ua, "mac os") || strings.Contains(ua, "macintosh"):
		return "macOS"
	case strings.Contains(ua, "linux"):
		return "Linux"
	case ua == "":
		return "Unknown"
	default:
		return "Other"
	}
}
