package models

import "fmt"

// FormatDuration форматирует секунды как "1h 5m".
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "0h 0m"
	}
	hours := seconds / 3600
	mins := (seconds % 3600) / 60
	return fmt.Sprintf("%dh %dm", hours, mins)
}
