package attendance

import (
	"fmt"
	"time"
)

// FormatDuration renders elapsed session time as "{h}h{m}min", or "{m}min"
// under an hour. Seconds are truncated and negative spans read as "0min".
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	hours := secs / 3600
	minutes := (secs % 3600) / 60
	if hours > 0 {
		return fmt.Sprintf("%dh%dmin", hours, minutes)
	}
	return fmt.Sprintf("%dmin", minutes)
}
