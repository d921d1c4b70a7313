package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// parseTimestamp reads seconds ("12.5") or a clock position ("01:02:03.5", "02:03").
func parseTimestamp(s string) (seconds float64, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		err = fmt.Errorf("empty timestamp")
		return
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		err = fmt.Errorf("invalid timestamp %q", s)
		return
	}
	for i, part := range parts {
		var v float64
		if v, err = strconv.ParseFloat(part, 64); err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			err = fmt.Errorf("invalid timestamp %q", s)
			return
		}
		if i < len(parts)-1 {
			if strings.Contains(part, ".") || v >= 60 && i > 0 {
				err = fmt.Errorf("invalid timestamp %q", s)
				return
			}
		} else if len(parts) > 1 && v >= 60 {
			err = fmt.Errorf("invalid timestamp %q", s)
			return
		}
		seconds = seconds*60 + v
	}
	return
}
