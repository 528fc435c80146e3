// Package reminders parses reminder settings typed by the user.
package reminders

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseHHMM accepts "H:MM" or "HH:MM" with hour in [0,24) and minute in [0,60).
func ParseHHMM(s string) (hour, minute int, ok bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, okH := parseDigits(parts[0])
	m, okM := parseDigits(parts[1])
	if !okH || !okM {
		return 0, 0, false
	}
	if h < 0 || h >= 24 || m < 0 || m >= 60 {
		return 0, 0, false
	}
	return h, m, true
}

// FormatHHMM is the canonical form stored in the reminders row.
func FormatHHMM(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

func parseDigits(s string) (int, bool) {
	if s == "" || len(s) > 2 {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// Settings is the outcome of a reminders message.
type Settings struct {
	Times    []string
	Timezone string
}

// Joined returns Times in the comma-joined storage form.
func (s Settings) Joined() string { return strings.Join(s.Times, ",") }

// Parse extracts HH:MM tokens and an optional trailing IANA timezone from text.
// When no valid time is found, fallbackTime is used; an unknown zone keeps currentTZ.
func Parse(text, currentTZ, fallbackTime string) Settings {
	parts := strings.Fields(text)
	tz := currentTZ
	timesPart := parts
	if len(parts) >= 2 && strings.Contains(parts[len(parts)-1], "/") {
		candidate := parts[len(parts)-1]
		if _, err := time.LoadLocation(candidate); err == nil {
			tz = candidate
		}
		timesPart = parts[:len(parts)-1]
	}

	raw := strings.Join(timesPart, "")
	seen := make(map[string]bool)
	var times []string
	for _, tok := range strings.Split(raw, ",") {
		h, m, ok := ParseHHMM(tok)
		if !ok {
			continue
		}
		hm := FormatHHMM(h, m)
		if seen[hm] {
			continue
		}
		seen[hm] = true
		times = append(times, hm)
	}
	if len(times) == 0 && fallbackTime != "" {
		times = []string{fallbackTime}
	}
	return Settings{Times: times, Timezone: tz}
}

// Split returns the HH:MM entries of a stored times column.
func Split(joined string) []string {
	var out []string
	for _, tok := range strings.Split(joined, ",") {
		if h, m, ok := ParseHHMM(tok); ok {
			out = append(out, FormatHHMM(h, m))
		}
	}
	return out
}
