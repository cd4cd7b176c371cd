package models

import (
	"time"

	"github.com/google/uuid"
)

type ContractorProfile struct {
	ID                        uuid.UUID                  `json:"id"`
	Name                      string                     `json:"name"`
	VATNumber                 string                     `json:"vat_number,omitempty"`
	QualificationCertificates []QualificationCertificate `json:"qualification_certificates"`
	OperatingRegions          []string                   `json:"operating_regions"`
	OwnedCertifications       []string                   `json:"owned_certifications"`
	InterestAmountRange       AmountRange                `json:"interest_amount_range"`
	CreatedAt                 time.Time                  `json:"created_at"`
	UpdatedAt                 time.Time                  `json:"updated_at"`
}

type QualificationCertificate struct {
	CategoryCode string `json:"category_code"`
	ClassLabel   string `json:"class_label"`
}

// AmountRange bounds are inclusive. A zero Max means no upper bound.
type AmountRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// CertificateDraft is what can be read from a qualification certificate
// document before an operator reviews it.
type CertificateDraft struct {
	CompanyName  *string                    `json:"company_name"`
	VATNumber    *string                    `json:"vat_number"`
	Certificates []QualificationCertificate `json:"certificates"`
	ExpiresAt    *time.Time                 `json:"expires_at"`
	IssuingBody  *string                    `json:"issuing_body"`
	Incomplete   bool                       `json:"incomplete"`
}

// Profile converts the draft into a contractor profile with empty regions,
// certifications and interest range.
func (d CertificateDraft) Profile() ContractorProfile {
	p := ContractorProfile{
		QualificationCertificates: append([]QualificationCertificate{}, d.Certificates...),
		OperatingRegions:          []string{},
		OwnedCertifications:       []string{},
	}
	if d.CompanyName != nil {
		p.Name = *d.CompanyName
	}
	if d.VATNumber != nil {
		p.VATNumber = *d.VATNumber
	}
	return p
}
