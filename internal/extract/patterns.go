package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/david/tender-matcher/internal/policy"
	"github.com/david/tender-matcher/internal/qualification"
)

var (
	categoryRegex = regexp.MustCompile(`(?i)\b(OG|OS)\s*(\d{1,2})(?:\s*-\s*([AB]))?\b`)
	cpvRegex      = regexp.MustCompile(`\b(\d{8}-\d)\b`)

	// A currency marker before or after a numeric run.
	currencyAmountRegex = regexp.MustCompile(`(?i)(?:(?:€|\beuro?\b)\s*(\d[\d.,]*)|(\d[\d.,]*)\s*(?:€|\beuro?\b))`)

	vatNumberRegex = regexp.MustCompile(`(?i)(?:C\.F\./P\.\s?IVA|P\.?\s?IVA|Partita\s+IVA)[:\s]+(\d{11})\b`)
	expiryRegexes  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:scadenza|validit[àa]|valida\s+fino\s+al)[:\s]+(\d{2}[/-]\d{2}[/-]\d{4})`),
		regexp.MustCompile(`(?i)(?:fino\s+al|entro\s+il)[:\s]+(\d{2}[/-]\d{2}[/-]\d{4})`),
	}
	companyRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)ragione\s+sociale[:\s]+([A-Z][A-Z .,&'-]+?)\s*(?:\n|sede)`),
		regexp.MustCompile(`(?i)(?:impresa|operatore|società)[:\s]+([A-Z][A-Z .,&'-]+?)\s*(?:\n|P\.)`),
		regexp.MustCompile(`(?i)denominazione[:\s]+([A-Z][A-Z .,&'-]+?)\s*(?:\n|sede)`),
	}
	issuerRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)organismo[:\s]+([A-Z][A-Z .'-]+?)\s*(?:\n|via)`),
		regexp.MustCompile(`(?i)(?:rilasciata|emessa)\s+da[:\s]+([A-Z][A-Z .'-]+)`),
	}
)

type amountCapture struct {
	field string
	re    *regexp.Regexp
}

// Patterns are the expressions compiled from a policy. They are built once
// and shared read-only between extractor goroutines.
type Patterns struct {
	identifier *regexp.Regexp
	secondary  *regexp.Regexp
	class      *regexp.Regexp
	bareClass  *regexp.Regexp
	duration   *regexp.Regexp
	captures   []amountCapture
	authority  []*regexp.Regexp
	yearUnits  map[string]bool
}

func compilePatterns(p *policy.Policy, classes *qualification.ClassTable) (*Patterns, error) {
	ex := p.Extraction
	numerals := romanAlternation(classes.Labels())

	pt := &Patterns{
		identifier: regexp.MustCompile(`(?i)\b(?:` + alternation(ex.IdentifierLabels) + `)[:\s]*([A-Z0-9]{10})\b`),
		class:      regexp.MustCompile(`(?i:` + alternation(ex.ClassLabels) + `)\s*[:.]?\s*(` + numerals + `)((?i:\s*-?\s*bis))?\b`),
		bareClass:  regexp.MustCompile(`\b(` + numerals + `)(\s*-?\s*bis)?\b`),
		yearUnits:  make(map[string]bool, len(ex.DurationYearUnits)),
	}
	if len(ex.SecondaryIdentifierLabels) > 0 {
		pt.secondary = regexp.MustCompile(`(?i)\b(?:` + alternation(ex.SecondaryIdentifierLabels) + `)[:\s]*([A-Z][0-9]{2}[A-Z][0-9]{11})\b`)
	}

	units := append(append([]string{}, ex.DurationMonthUnits...), ex.DurationYearUnits...)
	if len(units) > 0 {
		pt.duration = regexp.MustCompile(`(?i)\b(\d{1,4})\s*(` + alternation(units) + `)\b`)
	}
	for _, u := range ex.DurationYearUnits {
		pt.yearUnits[strings.ToLower(u)] = true
	}

	for _, c := range ex.AmountCaptures {
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return nil, fmt.Errorf("amount capture %s: %w", c.Field, err)
		}
		pt.captures = append(pt.captures, amountCapture{field: c.Field, re: re})
	}
	for _, a := range ex.AuthorityPatterns {
		re, err := regexp.Compile(a)
		if err != nil {
			return nil, fmt.Errorf("authority pattern: %w", err)
		}
		pt.authority = append(pt.authority, re)
	}
	return pt, nil
}

// alternation quotes terms and orders them longest first so that "classifica"
// wins over "class".
func alternation(terms []string) string {
	sorted := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			sorted = append(sorted, t)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	quoted := make([]string, len(sorted))
	for i, t := range sorted {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(t), " ", `\s+`)
	}
	return strings.Join(quoted, "|")
}

// romanAlternation lists the distinct base numerals of the class table,
// longest first.
func romanAlternation(labels []string) string {
	seen := map[string]bool{}
	var bases []string
	for _, l := range labels {
		base := strings.TrimSuffix(l, "-bis")
		if !seen[base] {
			seen[base] = true
			bases = append(bases, base)
		}
	}
	sort.SliceStable(bases, func(i, j int) bool { return len(bases[i]) > len(bases[j]) })

	quoted := make([]string, len(bases))
	for i, b := range bases {
		quoted[i] = regexp.QuoteMeta(b)
	}
	return strings.Join(quoted, "|")
}
