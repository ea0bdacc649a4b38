package article

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Recency windows used by acquisition.
const (
	DefaultWindow  = 24 * time.Hour
	ExpandedWindow = 14 * 24 * time.Hour
)

// Date range labels reported alongside results.
const (
	LabelDefault  = "24 hours"
	LabelExpanded = "2 weeks"
	LabelSearch   = "website search"
)

// WindowFor returns the recency window for a normal or expanded pass.
func WindowFor(expanded bool) time.Duration {
	if expanded {
		return ExpandedWindow
	}
	return DefaultWindow
}

// WithinWindow reports whether date falls inside window relative to now.
// Undated articles always pass.
func WithinWindow(date *time.Time, window time.Duration, now time.Time) bool {
	if date == nil || date.IsZero() {
		return true
	}
	return now.Sub(*date) <= window
}

// TimeAgo renders date relative to now for display.
func TimeAgo(date *time.Time, now time.Time) string {
	if date == nil || date.IsZero() {
		return "Recent"
	}
	d := now.Sub(*date)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return humanize.RelTime(*date, now, "ago", "from now")
	}
}
