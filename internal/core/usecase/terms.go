package usecase

import (
	"regexp"
	"sort"
	"strings"
)

var technicalTermPatterns = []*regexp.Regexp{
	// Error and fault codes: E-104, ERR 12, F03, FAULT-7.
	regexp.MustCompile(`(?i)\b(?:E|ERR|F|FAULT)[- ]?\d{1,4}\b`),
	// Voltages: 24V, 3.3 VDC, 230VAC, 500mV, 1.5kV.
	regexp.MustCompile(`\b\d+(?:\.\d+)?\s?(?:VAC|VDC|mV|kV|V)\b`),
	// Connector and terminal labels: J3, P12, CN4, TB1, X2.
	regexp.MustCompile(`\b(?:CN|TB|J|P|X)\d{1,3}\b`),
	// Pin labels: pin 4, PIN12.
	regexp.MustCompile(`(?i)\bpin\s?\d{1,3}\b`),
	// Part and model codes: XR-2040, AB1234C.
	regexp.MustCompile(`\b[A-Z]{1,5}-?\d{2,6}[A-Z]{0,3}\b`),
}

// RegexTermExtractor finds part codes, voltages, connector, pin and error labels.
type RegexTermExtractor struct {
	patterns []*regexp.Regexp
}

func NewRegexTermExtractor() *RegexTermExtractor {
	return &RegexTermExtractor{patterns: technicalTermPatterns}
}

// Extract returns unique tokens in order of first appearance.
func (e *RegexTermExtractor) Extract(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	type match struct {
		pos   int
		token string
	}
	var matches []match
	for _, p := range e.patterns {
		for _, loc := range p.FindAllStringIndex(text, -1) {
			matches = append(matches, match{pos: loc[0], token: strings.TrimSpace(text[loc[0]:loc[1]])})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].pos < matches[j].pos })

	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		key := strings.ToUpper(m.token)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m.token)
	}
	return out
}

// Contains reports whether text has at least one technical token.
func (e *RegexTermExtractor) Contains(text string) bool {
	for _, p := range e.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
