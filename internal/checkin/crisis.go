package checkin

import "strings"

// CrisisKeywords are matched as case-folded substrings.
var CrisisKeywords = []string{
	"суицид", "покончу", "умереть", "самоповреж", "self-harm", "suicide", "kill myself",
	"не хочу жить", "не вижу смысла",
}

// DetectCrisis reports whether text contains any crisis keyword.
func DetectCrisis(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range CrisisKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// RawText joins the raw answers in step order, newline separated, skipping missing ones.
func RawText(answers map[string]*string) string {
	var parts []string
	for _, step := range Steps {
		v := answers[step.Field()]
		if v == nil || *v == "" {
			continue
		}
		parts = append(parts, *v)
	}
	return strings.Join(parts, "\n")
}
