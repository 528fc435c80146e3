package checkin

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	leadingInt = regexp.MustCompile(`^[+-]?\d+`)
	decimalTok = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)$`)
)

// ParseScore reads the leading integer of the first token. Out-of-range values are kept.
func ParseScore(raw *string) *int {
	if raw == nil {
		return nil
	}
	fields := strings.Fields(*raw)
	if len(fields) == 0 {
		return nil
	}
	m := leadingInt.FindString(fields[0])
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}

// ParseSleepHours takes the first non-negative decimal token, accepting a decimal
// comma, and truncates it to whole hours. Tokens beyond int32 range are skipped.
func ParseSleepHours(raw *string) *int {
	if raw == nil {
		return nil
	}
	for _, tok := range strings.Fields(strings.ReplaceAll(*raw, ",", ".")) {
		if !decimalTok.MatchString(tok) {
			continue
		}
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil || f > math.MaxInt32 {
			continue
		}
		h := int(f)
		return &h
	}
	return nil
}

// NormalizeText keeps free text verbatim; empty becomes nil.
func NormalizeText(raw *string) *string {
	if raw == nil || *raw == "" {
		return nil
	}
	s := *raw
	return &s
}
