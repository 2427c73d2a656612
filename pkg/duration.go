// Package pkg holds small helpers shared by the server and gatewayctl.
package pkg

import (
	"strconv"
	"strings"
	"time"
)

var durationUnits = []struct {
	size   time.Duration
	suffix string
}{
	{24 * time.Hour, "d"},
	{time.Hour, "h"},
	{time.Minute, "m"},
	{time.Second, "s"},
}

// CompactDuration renders d with at most two units, e.g. "1h30m" or "850ms". Sub-second values
// use a single unit. Negative durations keep their sign.
func CompactDuration(d time.Duration) string {
	if d < 0 {
		return "-" + CompactDuration(-d)
	}
	switch {
	case d == 0:
		return "0s"
	case d < time.Microsecond:
		return strconv.FormatInt(d.Nanoseconds(), 10) + "ns"
	case d < time.Millisecond:
		return strconv.FormatInt(d.Microseconds(), 10) + "µs"
	case d < time.Second:
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	}

	var b strings.Builder
	parts := 0
	for _, u := range durationUnits {
		if d < u.size {
			if parts > 0 {
				break
			}
			continue
		}
		b.WriteString(strconv.FormatInt(int64(d/u.size), 10))
		b.WriteString(u.suffix)
		d %= u.size
		if parts++; parts == 2 || d < time.Second {
			break
		}
	}
	return b.String()
}
