package pkg

import (
	"testing"
	"time"
)

func TestCompactDuration(t *testing.T) {
	cases := map[time.Duration]string{
		0:                                   "0s",
		500 * time.Nanosecond:               "500ns",
		42 * time.Microsecond:               "42µs",
		850 * time.Millisecond:              "850ms",
		time.Second + 200*time.Millisecond:  "1s",
		90 * time.Minute:                    "1h30m",
		26*time.Hour + 5*time.Minute:        "1d2h",
		time.Hour + 5*time.Second:           "1h",
		-2 * time.Minute:                    "-2m",
		3*time.Minute + 4*time.Second + 1e6: "3m4s",
	}
	for in, want := range cases {
		if got := CompactDuration(in); got != want {
			t.Errorf("CompactDuration(%s) = %q, want %q", in, got, want)
		}
	}
}
