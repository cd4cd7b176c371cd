package extract

import (
	"strconv"
	"strings"

	"github.com/david/tender-matcher/internal/models"
)

type categoryMention struct {
	code       string
	start, end int
}

// NormalizeCategoryCode canonicalizes codes such as "og 01" or "os2 - a" to
// "OG1" and "OS2-A". It returns "" for anything that is not a category code.
func NormalizeCategoryCode(raw string) string {
	m := categoryRegex.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return ""
	}
	return formatCode(m)
}

func formatCode(m []string) string {
	n, err := strconv.Atoi(m[2])
	if err != nil || n == 0 {
		return ""
	}
	code := strings.ToUpper(m[1]) + strconv.Itoa(n)
	if m[3] != "" {
		code += "-" + strings.ToUpper(m[3])
	}
	return code
}

func findCategoryMentions(text string) []categoryMention {
	var out []categoryMention
	for _, loc := range categoryRegex.FindAllStringSubmatchIndex(text, -1) {
		groups := make([]string, 4)
		for g := 0; g < 4; g++ {
			if loc[2*g] >= 0 {
				groups[g] = text[loc[2*g]:loc[2*g+1]]
			}
		}
		code := formatCode(groups)
		if code == "" {
			continue
		}
		out = append(out, categoryMention{code: code, start: loc[0], end: loc[1]})
	}
	return out
}

// extractCategories scans free text first and then table rows. Codes are
// deduplicated in first-seen order; later mentions of a known code are
// dropped, never merged.
func (e *Extractor) extractCategories(text string, elements []Element) []models.CategoryRequirement {
	out := []models.CategoryRequirement{}
	seen := map[string]bool{}

	mentions := findCategoryMentions(text)
	window := e.policy.Extraction.ClassWindow
	flagWindow := e.policy.Extraction.FlagWindow

	for i, m := range mentions {
		if seen[m.code] {
			continue
		}
		seen[m.code] = true

		lo, hi := 0, len(text)
		if i > 0 {
			lo = mentions[i-1].end
		}
		if i+1 < len(mentions) {
			hi = mentions[i+1].start
		}

		after := text[m.end:clampMax(m.end+window, hi)]
		before := text[clampMin(m.start-window, lo):m.start]
		class := e.firstClass(after)
		if class == nil {
			class = e.lastClass(before)
		}

		around := strings.ToLower(text[clampMin(m.start-flagWindow, lo):clampMax(m.end+flagWindow, hi)])
		out = append(out, e.requirement(m.code, class, around))
	}

	for _, el := range elements {
		if el.Kind != ElementTableRow {
			continue
		}
		for _, m := range findCategoryMentions(el.Text) {
			if seen[m.code] {
				continue
			}
			seen[m.code] = true
			class := e.firstClass(el.Text[m.end:])
			if class == nil {
				class = e.firstBareClass(el.Text[m.end:])
			}
			out = append(out, e.requirement(m.code, class, strings.ToLower(el.Text)))
		}
	}

	return out
}

func (e *Extractor) requirement(code string, class *string, context string) models.CategoryRequirement {
	return models.CategoryRequirement{
		Code:          code,
		Description:   e.policy.CategoryName(code),
		RequiredClass: class,
		IsMain:        containsAny(context, e.policy.Extraction.MainCategoryKeywords),
		SpecialRegime: containsAny(context, e.policy.Extraction.SpecialRegimeKeywords),
	}
}

// firstClass returns the first labelled class in segment.
func (e *Extractor) firstClass(segment string) *string {
	for _, m := range e.patterns.class.FindAllStringSubmatch(segment, -1) {
		if label, ok := e.classLabel(m[1], m[2]); ok {
			return &label
		}
	}
	return nil
}

// lastClass returns the labelled class closest to the end of segment.
func (e *Extractor) lastClass(segment string) *string {
	matches := e.patterns.class.FindAllStringSubmatch(segment, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		if label, ok := e.classLabel(matches[i][1], matches[i][2]); ok {
			return &label
		}
	}
	return nil
}

func (e *Extractor) firstBareClass(segment string) *string {
	for _, m := range e.patterns.bareClass.FindAllStringSubmatch(segment, -1) {
		if label, ok := e.classLabel(m[1], m[2]); ok {
			return &label
		}
	}
	return nil
}

func (e *Extractor) classLabel(numeral, bis string) (string, bool) {
	raw := numeral
	if strings.TrimSpace(bis) != "" {
		raw += "-bis"
	}
	return e.classes.Canonical(raw)
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func clampMin(v, lo int) int {
	if v < lo {
		return lo
	}
	return v
}

func clampMax(v, hi int) int {
	if v > hi {
		return hi
	}
	return v
}
