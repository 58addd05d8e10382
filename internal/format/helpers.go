package format

import (
	"fmt"
	"time"
)

// FmtPercent formats a percentage with two decimals, e.g. "3.27%".
func FmtPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// FmtNm formats a wavelength in nanometres, e.g. "632.8 nm".
func FmtNm(v float64) string {
	return fmt.Sprintf("%.1f nm", v)
}

// FmtRatio formats a dimensionless ratio with three decimals.
func FmtRatio(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

// FmtDuration formats a duration as "Xm Ys" or "Ys".
func FmtDuration(d time.Duration) string {
	s := int(d.Seconds())
	if s >= 60 {
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	}
	return fmt.Sprintf("%ds", s)
}

// Truncate shortens s to maxLen characters, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// BoolMark returns "✓" for true and "✗" for false.
func BoolMark(v bool) string {
	if v {
		return "✓"
	}
	return "✗"
}
