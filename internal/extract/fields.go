package extract

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/david/tender-matcher/internal/models"
)

// extractCertifications returns the vocabulary entries mentioned anywhere in
// the text, in vocabulary order.
func (e *Extractor) extractCertifications(lower string) []string {
	out := []string{}
	for _, cert := range e.policy.Certifications {
		if cert != "" && strings.Contains(lower, strings.ToLower(cert)) {
			out = append(out, cert)
		}
	}
	return out
}

// extractDuration takes the first "<N> months" or "<N> years" mention in
// document order, whichever unit it uses.
func (e *Extractor) extractDuration(text string) *int {
	if e.patterns.duration == nil {
		return nil
	}
	m := e.patterns.duration.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	if e.patterns.yearUnits[strings.ToLower(m[2])] {
		n *= 12
	}
	return &n
}

func (e *Extractor) extractProcedure(lower string) string {
	for _, kv := range e.policy.Extraction.Procedures {
		if kv.Keyword != "" && strings.Contains(lower, strings.ToLower(kv.Keyword)) {
			return kv.Value
		}
	}
	return e.policy.Extraction.DefaultProcedure
}

func (e *Extractor) extractAwardCriterion(lower string) string {
	for _, kv := range e.policy.Extraction.AwardCriteria {
		if kv.Keyword != "" && strings.Contains(lower, strings.ToLower(kv.Keyword)) {
			return kv.Value
		}
	}
	return e.policy.Extraction.DefaultAwardCriterion
}

// extractLocation returns the gazetteer place whose province name occurs
// earliest in the text. Ties go to gazetteer order.
func (e *Extractor) extractLocation(text string) models.Location {
	best := -1
	var loc models.Location
	for _, place := range e.policy.Extraction.Gazetteer {
		idx := indexWord(text, place.Province)
		if idx < 0 || (best >= 0 && idx >= best) {
			continue
		}
		best = idx
		loc = models.Location{
			Region:   models.StringPtr(place.Region),
			Province: models.StringPtr(place.Province),
		}
	}
	return loc
}

// indexWord finds word verbatim where it is not glued to other letters, so
// "Roma" does not match inside "Romagna".
func indexWord(text, word string) int {
	if word == "" {
		return -1
	}
	offset := 0
	for {
		i := strings.Index(text[offset:], word)
		if i < 0 {
			return -1
		}
		start := offset + i
		end := start + len(word)

		prev, _ := utf8.DecodeLastRuneInString(text[:start])
		next, _ := utf8.DecodeRuneInString(text[end:])
		if (start == 0 || !unicode.IsLetter(prev)) && (end == len(text) || !unicode.IsLetter(next)) {
			return start
		}
		offset = start + 1
	}
}

func (e *Extractor) extractAuthority(text string) *string {
	for _, re := range e.patterns.authority {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(strings.Trim(strings.TrimSpace(m[1]), ",;:-"))
		if name == "" {
			continue
		}
		if utf8.RuneCountInString(name) > 200 {
			name = string([]rune(name)[:200])
		}
		return &name
	}
	return nil
}

// extractTitle picks the first reasonably sized line near the top of the
// document that mentions a title keyword.
func (e *Extractor) extractTitle(text string) *string {
	lines := strings.SplitN(text, "\n", e.policy.Extraction.TitleScanLines+1)
	if len(lines) > e.policy.Extraction.TitleScanLines {
		lines = lines[:e.policy.Extraction.TitleScanLines]
	}
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		n := utf8.RuneCountInString(line)
		if n <= 30 || n >= 200 {
			continue
		}
		if containsAny(strings.ToLower(line), e.policy.Extraction.TitleKeywords) {
			return &line
		}
	}
	return nil
}

func (e *Extractor) detectPriceRevision(lower string) bool {
	return containsAny(lower, e.policy.Extraction.PriceRevisionKeywords)
}
