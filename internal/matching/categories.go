package matching

import (
	"strings"

	"github.com/david/tender-matcher/internal/models"
	"github.com/david/tender-matcher/internal/policy"
)

// CategoryCheck is the outcome of comparing required category/class pairs
// with a contractor's certificates.
type CategoryCheck struct {
	Required  int
	Satisfied int
	// Missing lists unsatisfied category codes in requirement order.
	Missing []string
}

// Complete reports whether every requirement is satisfied.
func (c CategoryCheck) Complete() bool {
	return c.Satisfied == c.Required
}

// Score is floor(50 × satisfied / required), or 50 when nothing is
// required.
func (c CategoryCheck) Score() int {
	if c.Required == 0 {
		return categoryWeight
	}
	return categoryWeight * c.Satisfied / c.Required
}

// CheckCategories compares every required (code, class) pair against the
// contractor's certificates. A requirement without a class is satisfied by
// owning the code.
func (e *Engine) CheckCategories(tender models.TenderRecord, c models.ContractorProfile) CategoryCheck {
	held := e.Holdings(c)
	check := CategoryCheck{Required: len(tender.RequiredCategories), Missing: []string{}}

	for _, req := range tender.RequiredCategories {
		owned, ok := held[normalizeCode(req.Code)]
		switch {
		case !ok:
		case req.RequiredClass == nil:
			check.Satisfied++
			continue
		case e.classes.IsSufficient(owned, *req.RequiredClass):
			check.Satisfied++
			continue
		}
		check.Missing = append(check.Missing, req.Code)
	}
	return check
}

// Holdings collapses the contractor's certificates to one class per
// category code according to the merge policy.
func (e *Engine) Holdings(c models.ContractorProfile) map[string]string {
	held := make(map[string]string, len(c.QualificationCertificates))
	for _, cert := range c.QualificationCertificates {
		code := normalizeCode(cert.CategoryCode)
		if code == "" {
			continue
		}
		current, ok := held[code]
		switch {
		case !ok:
			held[code] = cert.ClassLabel
		case e.merge == policy.MergeFirst:
		default:
			if best, found := e.classes.Highest(current, cert.ClassLabel); found {
				held[code] = best
			}
		}
	}
	return held
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.Join(strings.Fields(code), ""))
}
