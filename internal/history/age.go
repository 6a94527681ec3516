package history

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseAge parses a retention age. Besides Go durations it accepts day and
// week suffixes ("7d", "2w").
func ParseAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty age")
	}

	if days, found := strings.CutSuffix(s, "d"); found {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid age: %s", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	if weeks, found := strings.CutSuffix(s, "w"); found {
		n, err := strconv.Atoi(weeks)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid age: %s", s)
		}
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid age: %s", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("age must not be negative: %s", s)
	}
	return d, nil
}
