package identity

import (
	"strings"

	"github.com/mssola/useragent"
)

// DeviceLabel turns a User-Agent into a display name such as
// "Chrome on Linux" or "Safari on iPhone".
func DeviceLabel(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "Unknown Device"
	}

	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()

	if ua.Mobile() {
		if platform := ua.Platform(); platform != "" && browser != "" {
			return browser + " on " + platform
		}
	}

	os := ua.OS()
	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return browser + " on " + os
}
