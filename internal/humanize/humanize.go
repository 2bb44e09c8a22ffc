// Package humanize formats sizes for the command line tools.
package humanize

import "fmt"

func Bytes(bytes uint64) string {
	switch {
	case bytes >= (1024 * 1024):
		return fmt.Sprintf("%.1f MiB", float64(bytes)/1024/1024)
	case bytes >= 1024:
		return fmt.Sprintf("%.1f KiB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// Percent formats part of total, e.g. "12.5%". A total of 0 is 0%.
func Percent(part, total uint64) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(part)*100/float64(total))
}
