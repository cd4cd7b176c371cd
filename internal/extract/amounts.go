package extract

import (
	"strings"

	"go.uber.org/zap"

	"github.com/david/tender-matcher/internal/models"
	"github.com/david/tender-matcher/internal/policy"
)

var amountFields = []string{policy.FieldTotal, policy.FieldWorks, policy.FieldSafety, policy.FieldLabor, policy.FieldDesign}

// extractAmounts applies line proximity over the text and then the table
// rows, label-then-capture for anything still missing, and finally derives
// the total from works plus design.
func (e *Extractor) extractAmounts(text string, elements []Element) models.Amounts {
	found := make(map[string]float64, len(amountFields))
	lines := strings.Split(text, "\n")

	var rows []string
	for _, el := range elements {
		if el.Kind == ElementTableRow {
			rows = append(rows, el.Text)
		}
	}

	// Only the base total may be read from neighbouring lines; sub-amounts
	// come from their own label line.
	for _, field := range amountFields {
		window := 0
		if field == policy.FieldTotal {
			window = e.policy.Extraction.AmountLineWindow
		}
		if v, ok := e.amountNearLabel(field, lines, window); ok && usableAmount(field, v) {
			found[field] = v
			continue
		}
		if v, ok := e.amountNearLabel(field, rows, 0); ok && usableAmount(field, v) {
			found[field] = v
		}
	}

	for _, c := range e.patterns.captures {
		if _, ok := found[c.field]; ok {
			continue
		}
		m := c.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v, ok := NormalizeAmount(m[1]); ok {
			if usableAmount(c.field, v) {
				found[c.field] = v
			}
		} else {
			e.log.Debug("malformed amount", zap.String("field", c.field), zap.String("token", m[1]))
		}
	}

	var a models.Amounts
	if v, ok := found[policy.FieldTotal]; ok {
		a.TotalContractValue = models.FloatPtr(v)
	}
	if v, ok := found[policy.FieldWorks]; ok {
		a.WorksValue = models.FloatPtr(v)
	}
	if v, ok := found[policy.FieldSafety]; ok {
		a.SafetyCharges = models.FloatPtr(v)
	}
	if v, ok := found[policy.FieldLabor]; ok {
		a.LaborCosts = models.FloatPtr(v)
	}
	if v, ok := found[policy.FieldDesign]; ok {
		a.DesignValue = models.FloatPtr(v)
	}

	if a.TotalContractValue == nil && a.WorksValue != nil {
		total := *a.WorksValue
		if a.DesignValue != nil {
			total += *a.DesignValue
		}
		a.TotalContractValue = models.FloatPtr(total)
		a.TotalDerived = true
	}
	return a
}

// usableAmount treats a non-positive total as unknown so that the total can
// still be derived from its parts.
func usableAmount(field string, v float64) bool {
	return field != policy.FieldTotal || v > 0
}

// amountNearLabel finds the first line matching a label of field and reads
// the first currency amount from that line, then the lines below it, then
// the lines above it, up to window lines away. Neighbouring lines labelled
// for another field are skipped.
func (e *Extractor) amountNearLabel(field string, lines []string, window int) (float64, bool) {
	for i, line := range lines {
		if !e.lineHasLabel(field, strings.ToLower(line)) {
			continue
		}
		order := []int{i}
		for d := 1; d <= window; d++ {
			order = append(order, i+d)
		}
		for d := 1; d <= window; d++ {
			order = append(order, i-d)
		}
		for _, j := range order {
			if j < 0 || j >= len(lines) {
				continue
			}
			if j != i && e.labelledForOther(field, strings.ToLower(lines[j])) {
				continue
			}
			if v, ok := e.firstCurrencyAmount(field, lines[j]); ok {
				return v, true
			}
		}
	}
	return 0, false
}

func (e *Extractor) labelledForOther(field, lower string) bool {
	for _, other := range amountFields {
		if other != field && e.lineHasLabel(other, lower) {
			return true
		}
	}
	return false
}

func (e *Extractor) lineHasLabel(field, lower string) bool {
	for _, label := range e.policy.Extraction.AmountLines {
		if label.Field != field {
			continue
		}
		all := true
		for _, term := range label.AllOf {
			if !strings.Contains(lower, strings.ToLower(term)) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func (e *Extractor) firstCurrencyAmount(field, line string) (float64, bool) {
	for _, m := range currencyAmountRegex.FindAllStringSubmatch(line, -1) {
		token := m[1]
		if token == "" {
			token = m[2]
		}
		if v, ok := NormalizeAmount(token); ok {
			return v, true
		}
		e.log.Debug("malformed amount", zap.String("field", field), zap.String("token", token))
	}
	return 0, false
}
