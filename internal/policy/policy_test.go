package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 70, p.Matching.EligibilityThreshold)
	assert.Equal(t, MergeMax, p.Matching.CertificateMerge)
	assert.Equal(t, TieBreakInput, p.Matching.TieBreak)
	assert.Equal(t, 100000.0, p.Advisory.LowAmount)
	assert.Equal(t, 5000000.0, p.Advisory.HighAmount)
	assert.Equal(t, 200, p.Classifier.MinTextLength)
	assert.Equal(t, 5, p.Classifier.MaxImages)
	assert.Equal(t, []string{"ISO 9001", "ISO 14001"}, p.QualityCertifications)
	assert.Equal(t, "Impianti interni elettrici, telefonici, radiotelefonici e televisivi", p.CategoryName("os30"))

	classes, err := p.Classes()
	require.NoError(t, err)
	assert.True(t, classes.IsSufficient("III-bis", "III"))
	assert.Len(t, classes.Labels(), 10)
}

func TestLoadOverridesFromFile(t *testing.T) {
	t.Setenv("TENDER_THRESHOLD", "60")

	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := `
class_tables:
  legacy:
    - { label: I, max_amount: 258000 }
    - { label: II, max_amount: 516000 }
    - { label: III }
active_class_table: legacy
matching:
  eligibility_threshold: ${TENDER_THRESHOLD}
  tie_break: name
extraction:
  identifier_labels: ["CIG"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 60, p.Matching.EligibilityThreshold)
	assert.Equal(t, TieBreakName, p.Matching.TieBreak)
	assert.Equal(t, MergeMax, p.Matching.CertificateMerge)
	assert.Equal(t, 150, p.Extraction.ClassWindow)

	classes, err := p.Classes()
	require.NoError(t, err)
	assert.False(t, classes.IsSufficient("III-bis", "I"))
}

func TestParseEligibilityThreshold(t *testing.T) {
	doc := `
class_tables:
  standard:
    - { label: I, max_amount: 258000 }
    - { label: II }
extraction:
  identifier_labels: ["CIG"]
`
	tests := []struct {
		name     string
		matching string
		want     int
	}{
		{"absent", "", DefaultEligibilityThreshold},
		{"matching without threshold", "matching:\n  tie_break: name\n", DefaultEligibilityThreshold},
		{"explicit zero", "matching:\n  eligibility_threshold: 0\n", 0},
		{"explicit value", "matching:\n  eligibility_threshold: 85\n", 85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse([]byte(doc + tt.matching))
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Matching.EligibilityThreshold)
		})
	}
}

func TestParseRejectsInvalidPolicies(t *testing.T) {
	base := `
class_tables:
  standard:
    - { label: I, max_amount: 1 }
    - { label: II }
`
	labels := "extraction:\n  identifier_labels: [\"CIG\"]\n"

	tests := []struct {
		name  string
		extra string
	}{
		{"unknown merge", labels + "matching:\n  certificate_merge: average\n"},
		{"unknown tie break", labels + "matching:\n  tie_break: random\n"},
		{"threshold too high", labels + "matching:\n  eligibility_threshold: 120\n"},
		{"missing table", labels + "active_class_table: regional\n"},
		{"inverted advisory bands", labels + "advisory:\n  low_amount: 10\n  high_amount: 5\n"},
		{"no identifier labels", "matching:\n  tie_break: name\n"},
		{"bad capture", captureBlock("total", "(unclosed")},
		{"capture without group", captureBlock("works", `importo`)},
		{"unknown field", captureBlock("vat", `iva (\d+)`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(base + tt.extra))
			assert.ErrorIs(t, err, ErrInvalidPolicy)
		})
	}
}

func TestUnboundedTierOnlyAtTop(t *testing.T) {
	_, err := Parse([]byte(`
class_tables:
  standard:
    - { label: I }
    - { label: II, max_amount: 10 }
extraction:
  identifier_labels: ["CIG"]
`))
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func captureBlock(field, pattern string) string {
	return "extraction:\n" +
		"  identifier_labels: [\"CIG\"]\n" +
		"  amount_captures:\n" +
		"    - { field: " + field + ", pattern: '" + pattern + "' }\n"
}
