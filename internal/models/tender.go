package models

import (
	"time"

	"github.com/google/uuid"
)

type DocumentType string

const (
	DocumentTextual DocumentType = "textual"
	DocumentScanned DocumentType = "scanned"
	DocumentComplex DocumentType = "complex"
)

// TenderRecord is the structured output of one extraction pass. It holds no
// timestamps or random values so that identical input text yields an
// identical record. Deadline and the region override are caller enrichment
// applied after extraction.
type TenderRecord struct {
	Identifier             string                `json:"identifier"`
	IdentifierSynthetic    bool                  `json:"identifier_synthetic"`
	SecondaryIdentifier    *string               `json:"secondary_identifier"`
	Title                  *string               `json:"title"`
	ContractingAuthority   *string               `json:"contracting_authority"`
	EUFunded               bool                  `json:"eu_funded"`
	Amounts                Amounts               `json:"amounts"`
	RequiredCategories     []CategoryRequirement `json:"required_categories"`
	Location               Location              `json:"location"`
	DurationMonths         *int                  `json:"duration_months"`
	ProcedureType          string                `json:"procedure_type"`
	AwardCriterion         string                `json:"award_criterion"`
	RequiredCertifications []string              `json:"required_certifications"`
	CPVCodes               []string              `json:"cpv_codes"`
	PriceRevision          bool                  `json:"price_revision"`
	DocumentType           DocumentType          `json:"document_type"`
	ConfidenceScore        float64               `json:"confidence_score"`
	Deadline               *time.Time            `json:"deadline,omitempty"`
}

type Amounts struct {
	TotalContractValue *float64 `json:"total_contract_value"`
	WorksValue         *float64 `json:"works_value"`
	SafetyCharges      *float64 `json:"safety_charges"`
	LaborCosts         *float64 `json:"labor_costs"`
	DesignValue        *float64 `json:"design_value"`
	// TotalDerived marks a total computed from sub-amounts rather than read
	// from the document.
	TotalDerived bool `json:"total_derived"`
}

// Total returns the total contract value when it is known and positive.
func (a Amounts) Total() (float64, bool) {
	if a.TotalContractValue == nil || *a.TotalContractValue <= 0 {
		return 0, false
	}
	return *a.TotalContractValue, true
}

type CategoryRequirement struct {
	Code          string  `json:"code"`
	Description   string  `json:"description,omitempty"`
	RequiredClass *string `json:"required_class"`
	IsMain        bool    `json:"is_main"`
	SpecialRegime bool    `json:"special_regime"`
}

type Location struct {
	Region   *string `json:"region"`
	Province *string `json:"province"`
}

// RegionName returns the region or an empty string.
func (l Location) RegionName() string {
	if l.Region == nil {
		return ""
	}
	return *l.Region
}

// Tender is a persisted TenderRecord.
type Tender struct {
	ID uuid.UUID `json:"id"`
	TenderRecord
	SourceURL   string    `json:"source_url,omitempty"`
	SourceRunID *string   `json:"source_run_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TenderEnrichment carries the caller-supplied fields that may be applied
// to a record after extraction.
type TenderEnrichment struct {
	Region   *string    `json:"region"`
	Province *string    `json:"province"`
	Deadline *time.Time `json:"deadline"`
}

// Apply copies the non-nil enrichment fields onto the record.
func (e TenderEnrichment) Apply(r *TenderRecord) {
	if e.Region != nil {
		r.Location.Region = e.Region
	}
	if e.Province != nil {
		r.Location.Province = e.Province
	}
	if e.Deadline != nil {
		r.Deadline = e.Deadline
	}
}

func StringPtr(s string) *string {
	return &s
}

func FloatPtr(f float64) *float64 {
	return &f
}
