package staff

import (
	"fmt"
	"time"
)

// OnlineWindow is how recent a presence ping must be to count as online.
const OnlineWindow = 2 * time.Minute

// PingInterval is how often an active client is expected to ping.
const PingInterval = 60 * time.Second

// IsOnline reports whether lastSeen is within OnlineWindow of now. The
// boundary is inclusive and a missing timestamp is offline.
func IsOnline(lastSeen *time.Time, now time.Time) bool {
	if lastSeen == nil {
		return false
	}
	return now.Sub(*lastSeen) <= OnlineWindow
}

// TimeAgo renders the age of lastSeen as "42s ago", "5m ago", "3h ago" or
// "2d ago". A missing timestamp renders as an em dash.
func TimeAgo(lastSeen *time.Time, now time.Time) string {
	if lastSeen == nil {
		return "—"
	}
	d := now.Sub(*lastSeen)
	if d < 0 {
		d = 0
	}
	sec := int64(d / time.Second)
	if sec < 60 {
		return fmt.Sprintf("%ds ago", sec)
	}
	min := sec / 60
	if min < 60 {
		return fmt.Sprintf("%dm ago", min)
	}
	hr := min / 60
	if hr < 24 {
		return fmt.Sprintf("%dh ago", hr)
	}
	return fmt.Sprintf("%dd ago", hr/24)
}

// StatusLabel is "Active" once the member has a display name (set when the
// invitation is accepted) and "Invited" before that.
func StatusLabel(displayName *string) string {
	if displayName != nil && *displayName != "" {
		return "Active"
	}
	return "Invited"
}
