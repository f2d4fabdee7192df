// Package format provides the pure formatting helpers used by the pages
// and the player panel.
package format

import "fmt"

// Clock formats seconds as mm:ss, switching to hh:mm:ss from one hour on.
// Negative values are treated as zero.
func Clock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := split(seconds)
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// ClockLong formats seconds as hh:mm:ss regardless of length.
func ClockLong(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := split(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func split(seconds int) (int, int, int) {
	return seconds / 3600, (seconds % 3600) / 60, seconds % 60
}
