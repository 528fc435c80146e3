// Package i18n holds the bot's user-facing strings for ru and en.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	LangRU = "ru"
	LangEN = "en"

	DefaultLang = LangRU
)

//go:embed strings_ru.json strings_en.json
var files embed.FS

var catalog = mustLoad()

func mustLoad() map[string]map[string]string {
	out := make(map[string]map[string]string, 2)
	for _, lang := range []string{LangRU, LangEN} {
		b, err := files.ReadFile(fmt.Sprintf("strings_%s.json", lang))
		if err != nil {
			panic(err)
		}
		m := make(map[string]string)
		if err := json.Unmarshal(b, &m); err != nil {
			panic(fmt.Errorf("strings_%s.json: %w", lang, err))
		}
		out[lang] = m
	}
	return out
}

// Normalize maps a telegram language_code to a supported locale, or "" if unsupported.
func Normalize(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case trimmed == "":
		return ""
	case strings.HasPrefix(trimmed, LangRU):
		return LangRU
	case strings.HasPrefix(trimmed, LangEN):
		return LangEN
	default:
		return ""
	}
}

// Or returns the normalized locale or DefaultLang.
func Or(raw string) string {
	if l := Normalize(raw); l != "" {
		return l
	}
	return DefaultLang
}

// Toggle switches between ru and en.
func Toggle(current string) string {
	if Or(current) == LangRU {
		return LangEN
	}
	return LangRU
}

// T looks up key for locale, falling back to ru and then to the key itself.
func T(key, locale string) string {
	if m, ok := catalog[Or(locale)]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	if s, ok := catalog[DefaultLang][key]; ok {
		return s
	}
	return key
}
