// Package keyword extracts search keywords from free-text questions.
package keyword

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultMaxKeywords is the number of keywords kept from a question.
	DefaultMaxKeywords = 5
	// DefaultMinLength is the minimum keyword length in runes.
	DefaultMinLength = 3
)

var stopWords = map[string]struct{}{
	"the": {}, "is": {}, "at": {}, "which": {}, "on": {}, "a": {}, "an": {},
	"and": {}, "or": {}, "but": {}, "in": {}, "with": {}, "to": {}, "for": {},
	"of": {}, "as": {}, "by": {},
}

// Extractor turns a question into an ordered keyword list.
type Extractor struct {
	maxKeywords int
	minLength   int
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithMaxKeywords caps the number of keywords returned.
func WithMaxKeywords(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.maxKeywords = n
		}
	}
}

// WithMinLength sets the minimum keyword length in runes.
func WithMinLength(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.minLength = n
		}
	}
}

// NewExtractor creates an Extractor with the default caps unless overridden.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{maxKeywords: DefaultMaxKeywords, minLength: DefaultMinLength}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns up to maxKeywords lowercase tokens of question in order of
// appearance, with stop words and short tokens removed. Repeated tokens are kept.
func (e *Extractor) Extract(question string) []string {
	keywords := []string{}
	for _, tok := range strings.FieldsFunc(strings.ToLower(question), isSeparator) {
		if len(keywords) == e.maxKeywords {
			break
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if utf8.RuneCountInString(tok) < e.minLength {
			continue
		}
		keywords = append(keywords, tok)
	}
	return keywords
}

func isSeparator(r rune) bool {
	return !(unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_')
}
