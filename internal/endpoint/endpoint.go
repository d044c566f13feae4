// Package endpoint resolves notification destinations.
package endpoint

import "strings"

// ServerType selects one of the built-in notification servers.
type ServerType int8

const (
	ProfitRobots ServerType = 0
)

const (
	ProfitRobotsURL = "https://profitrobots.com"

	// NotificationPath is appended to every base URL.
	NotificationPath = "/api/v1/Notification"
)

// Resolve returns the base URL of a built-in server. Unknown types fall back
// to ProfitRobots.
func Resolve(t ServerType) string {
	switch t {
	case ProfitRobots:
		return ProfitRobotsURL
	default:
		return ProfitRobotsURL
	}
}

// NotificationURL returns the notification endpoint under base.
func NotificationURL(base string) string {
	return strings.TrimRight(base, "/") + NotificationPath
}
