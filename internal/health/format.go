package health

import (
	"strconv"
	"time"
)

// FormatSince renders d as "N seconds ago", "N minutes ago" or "N hours ago".
// Hours are not rolled up into days. Negative durations render as zero.
func FormatSince(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	switch {
	case secs < 60:
		return ago(secs, "second")
	case secs < 3600:
		return ago(secs/60, "minute")
	default:
		return ago(secs/3600, "hour")
	}
}

func ago(n int64, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return strconv.FormatInt(n, 10) + " " + unit + "s ago"
}
