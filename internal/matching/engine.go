package matching

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/david/tender-matcher/internal/models"
	"github.com/david/tender-matcher/internal/policy"
	"github.com/david/tender-matcher/internal/qualification"
)

const (
	categoryWeight      = 50
	regionWeight        = 20
	amountWeight        = 20
	certificationWeight = 10
)

// Engine scores tenders against contractor profiles. It holds only
// read-only policy snapshots and is safe for concurrent use.
type Engine struct {
	classes   *qualification.ClassTable
	quality   []string
	threshold int
	merge     string
	tieBreak  string
	workers   int
	printer   *message.Printer
}

func NewEngine(p *policy.Policy) (*Engine, error) {
	classes, err := p.Classes()
	if err != nil {
		return nil, err
	}
	workers := p.Matching.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Engine{
		classes:   classes,
		quality:   append([]string{}, p.QualityCertifications...),
		threshold: p.Matching.EligibilityThreshold,
		merge:     p.Matching.CertificateMerge,
		tieBreak:  p.Matching.TieBreak,
		workers:   workers,
		printer:   message.NewPrinter(language.English),
	}, nil
}

// Classes returns the class table the engine compares against.
func (e *Engine) Classes() *qualification.ClassTable {
	return e.classes
}

// Validate rejects records that would otherwise be scored against
// defaulted zeros.
func (e *Engine) Validate(tender models.TenderRecord, c models.ContractorProfile) error {
	if _, ok := tender.Amounts.Total(); !ok {
		return &ValidationError{Err: ErrInvalidTender, Field: "total_contract_value", Reason: "is missing or not positive"}
	}
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Err: ErrInvalidContractor, Field: "name", Reason: "is empty"}
	}
	return nil
}

// Score computes the weighted compatibility of one contractor with one
// tender. It is a pure function of its inputs and the engine policy.
func (e *Engine) Score(tender models.TenderRecord, c models.ContractorProfile) (models.MatchScore, error) {
	if err := e.Validate(tender, c); err != nil {
		return models.MatchScore{}, err
	}
	total, _ := tender.Amounts.Total()

	var b models.ScoreBreakdown
	missing := []string{}

	check := e.CheckCategories(tender, c)
	b.Categories = check.Score()
	for _, code := range check.Missing {
		missing = append(missing, "Category "+code)
	}

	region := tender.Location.RegionName()
	if region != "" && containsFold(c.OperatingRegions, region) {
		b.Region = regionWeight
	} else if region != "" {
		missing = append(missing, "Operates in "+region)
	} else {
		missing = append(missing, "Tender region unknown")
	}

	r := c.InterestAmountRange
	switch {
	case total < r.Min:
		missing = append(missing, e.printer.Sprintf("Amount too low (< €%d)", int64(r.Min)))
	case r.Max > 0 && total > r.Max:
		missing = append(missing, e.printer.Sprintf("Amount too high (> €%d)", int64(r.Max)))
	default:
		b.Amount = amountWeight
	}

	if !tender.EUFunded || e.ownsQualityCertification(c) {
		b.Certifications = certificationWeight
	} else {
		missing = append(missing, "Quality certification ("+strings.Join(e.quality, " or ")+")")
	}

	sum := b.Sum()
	return models.MatchScore{
		Total:               sum,
		Breakdown:           b,
		MissingRequirements: missing,
		Eligible:            sum >= e.threshold,
	}, nil
}

func (e *Engine) ownsQualityCertification(c models.ContractorProfile) bool {
	for _, q := range e.quality {
		if containsFold(c.OwnedCertifications, q) {
			return true
		}
	}
	return false
}

func containsFold(list []string, v string) bool {
	v = strings.TrimSpace(v)
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), v) {
			return true
		}
	}
	return false
}
