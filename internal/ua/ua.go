// internal/ua/ua.go
//
// User-Agent classification for feed telemetry.
//
// Context
// -------
// Feed traffic arrives from three broad client families: browsers
// rendering the embed iframe, the Notion desktop app (an Electron shell
// whose UA carries a "Notion" product token), and link-preview or
// search crawlers. Request logs tag each hit so plan-usage analysis can
// separate real viewers from bot noise.
//
// The third-party parser (github.com/avct/uasurfer) stays behind this
// wrapper; nothing else in the codebase sees its enums.
package ua

import (
	"strings"

	surfer "github.com/avct/uasurfer"
)

// Info is the classification attached to every logged request.
type Info struct {
	Browser string // "Chrome", "Safari", … or "" when unrecognised
	OS      string // "Mac OS X", "Windows", …
	Device  string // "Desktop", "Mobile", "Tablet", or "Other"
	IsBot   bool
	IsApp   bool // Notion desktop app shell
	Raw     string
}

// Parse classifies a raw User-Agent header. Never fails; unknown agents
// come back with empty names and Device "Other".
func Parse(raw string) Info {
	parsed := surfer.Parse(raw)

	info := Info{
		Browser: parsed.Browser.Name.String(),
		OS:      parsed.OS.Name.String(),
		IsBot:   parsed.IsBot(),
		IsApp:   strings.Contains(raw, "Notion/"),
		Raw:     raw,
	}

	switch parsed.DeviceType {
	case surfer.DeviceComputer:
		info.Device = "Desktop"
	case surfer.DeviceTablet:
		info.Device = "Tablet"
	case surfer.DevicePhone, surfer.DeviceWearable:
		info.Device = "Mobile"
	default:
		info.Device = "Other"
	}

	return info
}
