package dataprocessing

import (
	"fmt"
	"regexp"
	"time"

	"robokin/pkg/contracts/domain"
)

// timestampPattern accepts YYYY-MM-DDThh:mm:ss[.fraction]Z with a fraction of
// any length
var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?Z$`)

const timestampLayout = "2006-01-02T15:04:05"

// ParseTimestamp converts a timestamp to epoch milliseconds. Fractions finer
// than a millisecond are truncated.
func ParseTimestamp(s string) (int64, error) {
	if !timestampPattern.MatchString(s) {
		return 0, fmt.Errorf("timestamp %q does not match YYYY-MM-DDThh:mm:ss[.f]Z", s)
	}

	base, err := time.ParseInLocation(timestampLayout, s[:19], time.UTC)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: %w", s, err)
	}

	var ms int64
	if s[19] == '.' {
		digits := s[20 : len(s)-1]
		for i := 0; i < 3; i++ {
			ms *= 10
			if i < len(digits) {
				ms += int64(digits[i] - '0')
			}
		}
	}

	return base.UnixMilli() + ms, nil
}

// NormalizeTimes returns the samples whose time parses, with TimeMs set.
// Rows that fail are dropped under DropRuleTimeFormat; the input is not modified.
func NormalizeTimes(samples []domain.RawSample) ([]domain.RawSample, domain.DropReport) {
	out := make([]domain.RawSample, 0, len(samples))
	drops := domain.DropReport{}

	for _, s := range samples {
		ms, err := ParseTimestamp(s.Time)
		if err != nil {
			drops.Add(DropRuleTimeFormat)
			continue
		}
		s.TimeMs = ms
		out = append(out, s)
	}

	return out, drops
}
