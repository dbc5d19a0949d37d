// Package language normalizes user- and provider-supplied language
// identifiers into the ISO 639-1 codes transcription backends expect.
package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Normalize converts any recognizable language identifier ("en-US",
// "eng", "French") into a bare ISO 639-1 code. Unrecognized input
// returns the empty string so callers fall back to provider
// auto-detection.
func Normalize(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		// Word forms ("french") are not BCP 47; try a display-name match.
		return matchDisplayName(code)
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return ""
	}
	return base.String()
}

// DisplayName returns the English name for a language code, or the
// input unchanged when it cannot be resolved.
func DisplayName(code string) string {
	normalized := Normalize(code)
	if normalized == "" {
		return code
	}
	tag, err := language.Parse(normalized)
	if err != nil {
		return code
	}
	return display.English.Tags().Name(tag)
}

var wordForms = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"danish":     "da",
	"norwegian":  "no",
	"finnish":    "fi",
}

func matchDisplayName(word string) string {
	return wordForms[strings.ToLower(strings.TrimSpace(word))]
}
