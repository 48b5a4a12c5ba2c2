package format

import (
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Indent prefixes every non-empty line after the first with n spaces. The
// first line is left alone so a block can follow a heading on the same
// indentation level.
func Indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != "" {
			lines[i] = pad + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

// Seconds formats a time offset in seconds with the fewest digits that
// round-trip ("100", "12.25").
func Seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Ago formats t relative to now ("3 hours ago").
func Ago(t time.Time) string {
	return humanize.Time(t)
}
