package utils

import (
	"fmt"
	"unicode/utf8"
)

// ByteCountSI formats a byte count in SI units (kB, MB, GB, etc.)
// For example: 1500 -> "1.5 kB"
func ByteCountSI(b int) string {
	const unit = 1000
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "kMGTPE"[exp])
}

// Truncate shortens s to at most max runes, appending "..." when something was cut.
// Response bodies are logged through it.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
