// Package language detects the source language of extracted page text so
// summarization prompts can answer in kind.
package language

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// Detector wraps a lingua detector with a fixed fallback code.
type Detector struct {
	detector lingua.LanguageDetector
	fallback string
}

// NewDetector builds a detector over all supported languages.
// fallback is the ISO 639-1 code returned when detection is unreliable.
func NewDetector(fallback string) *Detector {
	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build(),
		fallback: fallback,
	}
}

// Detect returns the lowercase ISO 639-1 code of the dominant language of
// text, or the fallback when text is empty or no language is confident.
func (d *Detector) Detect(text string) string {
	if strings.TrimSpace(text) == "" {
		return d.fallback
	}

	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return d.fallback
	}

	code := strings.ToLower(lang.IsoCode639_1().String())
	if code == "" || len(code) > 5 {
		return d.fallback
	}
	return code
}
