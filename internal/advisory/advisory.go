// Package advisory derives a participate / evaluate / do-not-participate
// traffic light from a legal compliance check and an economic heuristic.
package advisory

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/david/tender-matcher/internal/matching"
	"github.com/david/tender-matcher/internal/models"
	"github.com/david/tender-matcher/internal/policy"
)

type LegalCheck struct {
	Light  models.Light `json:"light"`
	Issues []string     `json:"issues"`
}

type EconomicCheck struct {
	Light models.Light `json:"light"`
	Note  string       `json:"note,omitempty"`
}

type Report struct {
	Legal          LegalCheck            `json:"legal"`
	Economic       EconomicCheck         `json:"economic"`
	Recommendation models.Recommendation `json:"recommendation"`
	Score          models.MatchScore     `json:"score"`
}

type Advisor struct {
	engine  *matching.Engine
	low     float64
	high    float64
	printer *message.Printer
}

func NewAdvisor(cfg policy.Advisory, engine *matching.Engine) *Advisor {
	return &Advisor{
		engine:  engine,
		low:     cfg.LowAmount,
		high:    cfg.HighAmount,
		printer: message.NewPrinter(language.English),
	}
}

// Legal is red when the tender value exceeds the highest ceiling among the
// contractor's classes, yellow when categories or certifications are
// missing, and green otherwise. A contractor without certificates is
// assumed to hold the lowest class.
func (a *Advisor) Legal(tender models.TenderRecord, c models.ContractorProfile) (LegalCheck, error) {
	if err := a.engine.Validate(tender, c); err != nil {
		return LegalCheck{}, err
	}
	total, _ := tender.Amounts.Total()

	classes := a.engine.Classes()
	ceiling, _ := classes.MaxAmount(classes.Lowest())
	// Every attestation counts here, whatever the merge policy used for scoring.
	for _, cert := range c.QualificationCertificates {
		if limit, ok := classes.MaxAmount(cert.ClassLabel); ok && limit > ceiling {
			ceiling = limit
		}
	}
	if total > ceiling {
		return LegalCheck{
			Light:  models.LightRed,
			Issues: []string{a.printer.Sprintf("Amount exceeds qualification capacity (€%d > €%d)", int64(total), int64(ceiling))},
		}, nil
	}

	issues := []string{}
	if check := a.engine.CheckCategories(tender, c); !check.Complete() {
		issues = append(issues, "Qualification insufficient for "+strings.Join(check.Missing, ", ")+" - requires avvalimento/RTI")
	}
	var missingCerts []string
	for _, cert := range tender.RequiredCertifications {
		if !ownsCertification(c, cert) {
			missingCerts = append(missingCerts, cert)
		}
	}
	if len(missingCerts) > 0 {
		issues = append(issues, "Missing certifications: "+strings.Join(missingCerts, ", "))
	}

	if len(issues) > 0 {
		return LegalCheck{Light: models.LightYellow, Issues: issues}, nil
	}
	return LegalCheck{Light: models.LightGreen, Issues: issues}, nil
}

// Economic looks only at the tender value. It never returns red.
func (a *Advisor) Economic(tender models.TenderRecord) EconomicCheck {
	total, ok := tender.Amounts.Total()
	switch {
	case !ok:
		return EconomicCheck{Light: models.LightYellow, Note: "Tender value unknown"}
	case total < a.low:
		return EconomicCheck{Light: models.LightYellow, Note: "Low value, thin margins"}
	case total > a.high:
		return EconomicCheck{Light: models.LightYellow, Note: "High value, execution risk"}
	}
	return EconomicCheck{Light: models.LightGreen}
}

// Recommend is a two-input decision table.
func Recommend(legal, economic models.Light) models.Recommendation {
	switch {
	case legal == models.LightRed:
		return models.RecommendDoNotParticipate
	case legal == models.LightGreen && economic == models.LightGreen:
		return models.RecommendParticipate
	default:
		return models.RecommendEvaluateCarefully
	}
}

func (a *Advisor) Report(tender models.TenderRecord, c models.ContractorProfile) (Report, error) {
	legal, err := a.Legal(tender, c)
	if err != nil {
		return Report{}, err
	}
	score, err := a.engine.Score(tender, c)
	if err != nil {
		return Report{}, err
	}
	economic := a.Economic(tender)
	return Report{
		Legal:          legal,
		Economic:       economic,
		Recommendation: Recommend(legal.Light, economic.Light),
		Score:          score,
	}, nil
}

func ownsCertification(c models.ContractorProfile, cert string) bool {
	for _, owned := range c.OwnedCertifications {
		if strings.EqualFold(strings.TrimSpace(owned), strings.TrimSpace(cert)) {
			return true
		}
	}
	return false
}
