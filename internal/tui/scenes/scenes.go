// Package scenes provides the TUI scenes for kerneural.
package scenes

import (
	"fmt"
	"time"
)

// TickMsg is sent on each tick. The parent model forwards it only to the
// active scene.
type TickMsg struct {
	Scene string
	Time  time.Time
}

func formatNumber(n uint64) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
	if n >= 1000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%d", n)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
