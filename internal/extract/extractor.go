package extract

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/david/tender-matcher/internal/models"
	"github.com/david/tender-matcher/internal/policy"
	"github.com/david/tender-matcher/internal/qualification"
)

type ElementKind string

const (
	ElementParagraph ElementKind = "paragraph"
	ElementTableRow  ElementKind = "table_row"
	ElementTitle     ElementKind = "title"
)

// Element is a structural hint from the text acquisition layer. Table rows
// carry their cells joined with " | ".
type Element struct {
	Kind ElementKind `json:"kind"`
	Text string      `json:"text"`
}

// Extractor turns document text into a TenderRecord. It is safe for
// concurrent use.
type Extractor struct {
	policy   *policy.Policy
	classes  *qualification.ClassTable
	patterns *Patterns
	log      *zap.Logger
}

func NewExtractor(p *policy.Policy, log *zap.Logger) (*Extractor, error) {
	if log == nil {
		log = zap.NewNop()
	}
	classes, err := p.Classes()
	if err != nil {
		return nil, err
	}
	patterns, err := compilePatterns(p, classes)
	if err != nil {
		return nil, err
	}
	return &Extractor{policy: p, classes: classes, patterns: patterns, log: log}, nil
}

// Extract runs every field extractor over the same text concurrently and
// assembles the record. Fields that cannot be found are left absent. The
// document type defaults to textual; the pipeline overwrites it.
func (e *Extractor) Extract(text string, elements []Element) models.TenderRecord {
	text = prepareText(text)
	prepared := make([]Element, len(elements))
	for i, el := range elements {
		prepared[i] = Element{Kind: el.Kind, Text: prepareText(el.Text)}
	}
	elements = prepared
	lower := strings.ToLower(text)

	rec := models.TenderRecord{DocumentType: models.DocumentTextual}
	var g errgroup.Group

	g.Go(func() error {
		rec.Identifier = e.extractIdentifier(text)
		rec.SecondaryIdentifier = e.extractSecondaryIdentifier(text)
		rec.CPVCodes = extractCPVCodes(text)
		return nil
	})
	g.Go(func() error {
		rec.EUFunded = e.detectEUFunding(lower)
		rec.PriceRevision = e.detectPriceRevision(lower)
		return nil
	})
	g.Go(func() error {
		rec.Amounts = e.extractAmounts(text, elements)
		return nil
	})
	g.Go(func() error {
		rec.RequiredCategories = e.extractCategories(text, elements)
		return nil
	})
	g.Go(func() error {
		rec.RequiredCertifications = e.extractCertifications(lower)
		return nil
	})
	g.Go(func() error {
		rec.DurationMonths = e.extractDuration(text)
		return nil
	})
	g.Go(func() error {
		rec.ProcedureType = e.extractProcedure(lower)
		rec.AwardCriterion = e.extractAwardCriterion(lower)
		return nil
	})
	g.Go(func() error {
		rec.Location = e.extractLocation(text)
		return nil
	})
	g.Go(func() error {
		rec.ContractingAuthority = e.extractAuthority(text)
		rec.Title = e.extractTitle(text)
		return nil
	})
	_ = g.Wait()

	rec.ConfidenceScore = ComputeConfidence(rec)
	return rec
}

// ComputeConfidence is a completeness proxy, not a correctness estimate:
// 0.3 for an identifier, 0.4 for a positive total (derived totals count),
// 0.3 for at least one category, capped at 1.
func ComputeConfidence(rec models.TenderRecord) float64 {
	tenths := 0
	if rec.Identifier != "" {
		tenths += 3
	}
	if _, ok := rec.Amounts.Total(); ok {
		tenths += 4
	}
	if len(rec.RequiredCategories) > 0 {
		tenths += 3
	}
	if tenths > 10 {
		tenths = 10
	}
	return float64(tenths) / 10
}

// prepareText composes Unicode to NFC, unifies line endings and replaces
// no-break spaces, which regexp's \s does not match.
func prepareText(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.NewReplacer("\u00a0", " ", "\u202f", " ", "\u2007", " ").Replace(s)
}
