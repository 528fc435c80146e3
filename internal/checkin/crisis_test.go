package checkin

import "testing"

func TestDetectCrisis(t *testing.T) {
	tests := map[string]bool{
		"I think about suicide":           true,
		"SUICIDE":                         true,
		"не хочу жить":                    true,
		"Не Хочу Жить больше":             true,
		"sometimes I want to kill myself": true,
		"мысли о самоповреждении":         true,
		"tired but fine":                  false,
		"":                                false,
		"хочу жить лучше":                 false,
	}
	for text, want := range tests {
		if got := DetectCrisis(text); got != want {
			t.Errorf("DetectCrisis(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestRawTextSkipsMissingAnswers(t *testing.T) {
	answers := map[string]*string{
		"mood":     strp("3"),
		"stress":   nil,
		"emotions": strp(""),
		"notes":    strp("не хочу жить"),
	}
	if got := RawText(answers); got != "3\nне хочу жить" {
		t.Fatalf("RawText = %q", got)
	}
	if !DetectCrisis(RawText(answers)) {
		t.Fatal("crisis in notes not detected")
	}
	if RawText(nil) != "" {
		t.Fatal("RawText(nil) must be empty")
	}
}
