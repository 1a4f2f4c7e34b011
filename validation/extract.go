package validation

import (
	"strings"
	"time"
)

// Helpers for reading untyped OCR output. Extracted data is arbitrary JSON;
// every accessor reports absence instead of panicking so a malformed document
// becomes a finding, not a crash.

// stringField returns the first non-empty string value among keys.
func stringField(data map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := data[key]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}

// numberField returns the first numeric value among keys. JSON numbers decode
// as float64; strings that parse as numbers are not accepted since the
// extraction collaborator normalizes amounts.
func numberField(data map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		v, ok := data[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		}
	}
	return 0, false
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"2 January 2006",
	"January 2, 2006",
}

// dateField parses the first present date value among keys, tolerating the
// formats OCR output actually produces.
func dateField(data map[string]any, keys ...string) (time.Time, bool) {
	s, ok := stringField(data, keys...)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// normalizeName collapses case and whitespace for fuzzy person-name compare.
func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// namesMatch reports whether two person names refer to the same person after
// normalization. One name being a token-subset of the other (initials or a
// dropped middle name) still counts as a match.
func namesMatch(a, b string) bool {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	return tokenSubset(na, nb) || tokenSubset(nb, na)
}

func tokenSubset(small, big string) bool {
	bigTokens := make(map[string]bool)
	for _, tok := range strings.Fields(big) {
		bigTokens[tok] = true
	}
	for _, tok := range strings.Fields(small) {
		if !bigTokens[tok] {
			return false
		}
	}
	return true
}
