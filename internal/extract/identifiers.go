package extract

import "strings"

// extractIdentifier returns the first labelled 10-character token, upper-cased.
func (e *Extractor) extractIdentifier(text string) string {
	m := e.patterns.identifier.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

func (e *Extractor) extractSecondaryIdentifier(text string) *string {
	if e.patterns.secondary == nil {
		return nil
	}
	m := e.patterns.secondary.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	id := strings.ToUpper(m[1])
	return &id
}

func (e *Extractor) detectEUFunding(lower string) bool {
	for _, kw := range e.policy.Extraction.EUKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func extractCPVCodes(text string) []string {
	codes := []string{}
	seen := map[string]bool{}
	for _, m := range cpvRegex.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			codes = append(codes, m[1])
		}
	}
	return codes
}
