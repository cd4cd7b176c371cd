package policy

import (
	"embed"
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/david/tender-matcher/internal/qualification"
)

//go:embed config/policy.yaml
var policyYAML embed.FS

var ErrInvalidPolicy = errors.New("invalid policy")

// Amount fields addressable from amount_lines and amount_captures.
const (
	FieldTotal  = "total"
	FieldWorks  = "works"
	FieldSafety = "safety"
	FieldLabor  = "labor"
	FieldDesign = "design"
)

// Certificate merge policies for contractors holding several class claims
// for the same category code.
const (
	MergeMax   = "max"
	MergeFirst = "first"
)

// Tie-break policies for equal ranking scores.
const (
	TieBreakInput = "input"
	TieBreakName  = "name"
)

// Policy holds every jurisdiction-specific table consumed by extraction,
// matching and advisory. A loaded Policy is treated as read-only.
type Policy struct {
	Categories            []Category             `yaml:"categories"`
	ClassTables           map[string][]ClassTier `yaml:"class_tables"`
	ActiveClassTable      string                 `yaml:"active_class_table"`
	Certifications        []string               `yaml:"certifications"`
	QualityCertifications []string               `yaml:"quality_certifications"`
	Matching              Matching               `yaml:"matching"`
	Advisory              Advisory               `yaml:"advisory"`
	Classifier            Classifier             `yaml:"classifier"`
	Extraction            Extraction             `yaml:"extraction"`
}

type Category struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// ClassTier is one rung of a qualification class table. A nil MaxAmount
// means unbounded and is only allowed on the top tier.
type ClassTier struct {
	Label     string   `yaml:"label"`
	MaxAmount *float64 `yaml:"max_amount,omitempty"`
}

const DefaultEligibilityThreshold = 70

type Matching struct {
	EligibilityThreshold int    `yaml:"eligibility_threshold"`
	CertificateMerge     string `yaml:"certificate_merge"`
	TieBreak             string `yaml:"tie_break"`
	Workers              int    `yaml:"workers"`
}

type Advisory struct {
	LowAmount  float64 `yaml:"low_amount"`
	HighAmount float64 `yaml:"high_amount"`
}

type Classifier struct {
	MinTextLength int `yaml:"min_text_length"`
	MaxImages     int `yaml:"max_images"`
}

type Extraction struct {
	IdentifierLabels          []string        `yaml:"identifier_labels"`
	SecondaryIdentifierLabels []string        `yaml:"secondary_identifier_labels"`
	EUKeywords                []string        `yaml:"eu_keywords"`
	ClassLabels               []string        `yaml:"class_labels"`
	ClassWindow               int             `yaml:"class_window"`
	FlagWindow                int             `yaml:"flag_window"`
	MainCategoryKeywords      []string        `yaml:"main_category_keywords"`
	SpecialRegimeKeywords     []string        `yaml:"special_regime_keywords"`
	AmountLineWindow          int             `yaml:"amount_line_window"`
	AmountLines               []AmountLabel   `yaml:"amount_lines"`
	AmountCaptures            []AmountCapture `yaml:"amount_captures"`
	DurationMonthUnits        []string        `yaml:"duration_month_units"`
	DurationYearUnits         []string        `yaml:"duration_year_units"`
	Procedures                []KeywordValue  `yaml:"procedures"`
	DefaultProcedure          string          `yaml:"default_procedure"`
	AwardCriteria             []KeywordValue  `yaml:"award_criteria"`
	DefaultAwardCriterion     string          `yaml:"default_award_criterion"`
	Gazetteer                 []Place         `yaml:"gazetteer"`
	AuthorityPatterns         []string        `yaml:"authority_patterns"`
	TitleKeywords             []string        `yaml:"title_keywords"`
	TitleScanLines            int             `yaml:"title_scan_lines"`
	PriceRevisionKeywords     []string        `yaml:"price_revision_keywords"`
}

// AmountLabel matches a line when the lowercased line contains every term.
type AmountLabel struct {
	Field string   `yaml:"field"`
	AllOf []string `yaml:"all_of"`
}

// AmountCapture is a label-then-capture expression whose first group is the
// numeric run for Field.
type AmountCapture struct {
	Field   string `yaml:"field"`
	Pattern string `yaml:"pattern"`
}

type KeywordValue struct {
	Keyword string `yaml:"keyword"`
	Value   string `yaml:"value"`
}

// Place maps a province name, matched verbatim, to its region.
type Place struct {
	Province string `yaml:"province"`
	Region   string `yaml:"region"`
}

// Default returns the embedded policy.
func Default() (*Policy, error) {
	data, err := policyYAML.ReadFile("config/policy.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded policy: %w", err)
	}
	return Parse(data)
}

// Load reads a policy file, falling back to the embedded policy when path
// is empty.
func Load(path string) (*Policy, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML after expanding ${VAR} references and validates the
// result.
func Parse(data []byte) (*Policy, error) {
	expanded := os.ExpandEnv(string(data))

	// Keys absent from the document keep these values; an explicit 0 is kept.
	p := Policy{Matching: Matching{EligibilityThreshold: DefaultEligibilityThreshold}}
	if err := yaml.Unmarshal([]byte(expanded), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Policy) applyDefaults() {
	if p.ActiveClassTable == "" {
		p.ActiveClassTable = "standard"
	}
	if p.Matching.CertificateMerge == "" {
		p.Matching.CertificateMerge = MergeMax
	}
	if p.Matching.TieBreak == "" {
		p.Matching.TieBreak = TieBreakInput
	}
	if p.Matching.Workers <= 0 {
		p.Matching.Workers = 4
	}
	if p.Advisory.LowAmount == 0 {
		p.Advisory.LowAmount = 100000
	}
	if p.Advisory.HighAmount == 0 {
		p.Advisory.HighAmount = 5000000
	}
	if p.Classifier.MinTextLength == 0 {
		p.Classifier.MinTextLength = 200
	}
	if p.Classifier.MaxImages == 0 {
		p.Classifier.MaxImages = 5
	}

	ex := &p.Extraction
	if ex.ClassWindow <= 0 {
		ex.ClassWindow = 150
	}
	if ex.FlagWindow <= 0 {
		ex.FlagWindow = 100
	}
	if ex.AmountLineWindow <= 0 {
		ex.AmountLineWindow = 2
	}
	if ex.TitleScanLines <= 0 {
		ex.TitleScanLines = 20
	}
	if ex.DefaultProcedure == "" {
		ex.DefaultProcedure = "Aperta"
	}
	if ex.DefaultAwardCriterion == "" {
		ex.DefaultAwardCriterion = "Prezzo più basso"
	}
}

// Validate checks the cross-field constraints that YAML decoding cannot.
func (p *Policy) Validate() error {
	if _, err := p.Classes(); err != nil {
		return err
	}
	if p.Matching.EligibilityThreshold < 0 || p.Matching.EligibilityThreshold > 100 {
		return fmt.Errorf("%w: eligibility_threshold %d out of range", ErrInvalidPolicy, p.Matching.EligibilityThreshold)
	}
	switch p.Matching.CertificateMerge {
	case MergeMax, MergeFirst:
	default:
		return fmt.Errorf("%w: unknown certificate_merge %q", ErrInvalidPolicy, p.Matching.CertificateMerge)
	}
	switch p.Matching.TieBreak {
	case TieBreakInput, TieBreakName:
	default:
		return fmt.Errorf("%w: unknown tie_break %q", ErrInvalidPolicy, p.Matching.TieBreak)
	}
	if p.Advisory.LowAmount > p.Advisory.HighAmount {
		return fmt.Errorf("%w: advisory low_amount above high_amount", ErrInvalidPolicy)
	}
	if len(p.Extraction.IdentifierLabels) == 0 {
		return fmt.Errorf("%w: identifier_labels must not be empty", ErrInvalidPolicy)
	}
	for _, l := range p.Extraction.AmountLines {
		if !knownField(l.Field) {
			return fmt.Errorf("%w: amount_lines field %q", ErrInvalidPolicy, l.Field)
		}
		if len(l.AllOf) == 0 {
			return fmt.Errorf("%w: amount_lines entry for %s has no terms", ErrInvalidPolicy, l.Field)
		}
	}
	for _, c := range p.Extraction.AmountCaptures {
		if !knownField(c.Field) {
			return fmt.Errorf("%w: amount_captures field %q", ErrInvalidPolicy, c.Field)
		}
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return fmt.Errorf("%w: amount_captures %s: %v", ErrInvalidPolicy, c.Field, err)
		}
		if re.NumSubexp() < 1 {
			return fmt.Errorf("%w: amount_captures %s has no capture group", ErrInvalidPolicy, c.Field)
		}
	}
	for _, pattern := range p.Extraction.AuthorityPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("%w: authority pattern: %v", ErrInvalidPolicy, err)
		}
	}
	return nil
}

// Classes builds the comparator for the active class table.
func (p *Policy) Classes() (*qualification.ClassTable, error) {
	tiers, ok := p.ClassTables[p.ActiveClassTable]
	if !ok {
		return nil, fmt.Errorf("%w: class table %q not defined", ErrInvalidPolicy, p.ActiveClassTable)
	}
	out := make([]qualification.Tier, 0, len(tiers))
	for i, t := range tiers {
		limit := math.Inf(1)
		if t.MaxAmount != nil {
			limit = *t.MaxAmount
		} else if i != len(tiers)-1 {
			return nil, fmt.Errorf("%w: class %q has no max_amount", ErrInvalidPolicy, t.Label)
		}
		out = append(out, qualification.Tier{Label: t.Label, MaxAmount: limit})
	}
	table, err := qualification.NewClassTable(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	return table, nil
}

// CategoryName returns the descriptive name for a category code, or "".
func (p *Policy) CategoryName(code string) string {
	for _, c := range p.Categories {
		if strings.EqualFold(c.Code, code) {
			return c.Name
		}
	}
	return ""
}

func knownField(f string) bool {
	switch f {
	case FieldTotal, FieldWorks, FieldSafety, FieldLabor, FieldDesign:
		return true
	}
	return false
}
