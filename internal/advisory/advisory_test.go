package advisory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/tender-matcher/internal/matching"
	"github.com/david/tender-matcher/internal/models"
	"github.com/david/tender-matcher/internal/policy"
)

func newTestAdvisor(t *testing.T) *Advisor {
	t.Helper()
	p, err := policy.Default()
	require.NoError(t, err)
	engine, err := matching.NewEngine(p)
	require.NoError(t, err)
	return NewAdvisor(p.Advisory, engine)
}

func tenderOf(total float64, certs []string, cats ...models.CategoryRequirement) models.TenderRecord {
	return models.TenderRecord{
		Identifier:             "9A12345BCD",
		Amounts:                models.Amounts{TotalContractValue: models.FloatPtr(total)},
		Location:               models.Location{Region: models.StringPtr("Lombardia")},
		RequiredCategories:     cats,
		RequiredCertifications: certs,
	}
}

func profile(certs ...models.QualificationCertificate) models.ContractorProfile {
	return models.ContractorProfile{
		Name:                      "Edil Nord",
		OperatingRegions:          []string{"Lombardia"},
		QualificationCertificates: certs,
		OwnedCertifications:       []string{"ISO 9001"},
	}
}

func og1(class string) models.CategoryRequirement {
	return models.CategoryRequirement{Code: "OG1", RequiredClass: models.StringPtr(class)}
}

func TestLegal(t *testing.T) {
	a := newTestAdvisor(t)

	tests := []struct {
		name       string
		tender     models.TenderRecord
		contractor models.ContractorProfile
		want       models.Light
		issues     []string
	}{
		{
			name:       "covered",
			tender:     tenderOf(900000, []string{"ISO 9001"}, og1("III")),
			contractor: profile(models.QualificationCertificate{CategoryCode: "OG1", ClassLabel: "III"}),
			want:       models.LightGreen,
			issues:     []string{},
		},
		{
			name:       "amount above highest class ceiling",
			tender:     tenderOf(2500000, nil, og1("III")),
			contractor: profile(models.QualificationCertificate{CategoryCode: "OG1", ClassLabel: "III"}),
			want:       models.LightRed,
			issues:     []string{"Amount exceeds qualification capacity (€2,500,000 > €1,033,000)"},
		},
		{
			name:       "no certificates assumes lowest class",
			tender:     tenderOf(300000, nil),
			contractor: profile(),
			want:       models.LightRed,
			issues:     []string{"Amount exceeds qualification capacity (€300,000 > €258,000)"},
		},
		{
			name:   "partial category coverage",
			tender: tenderOf(400000, nil, og1("III"), models.CategoryRequirement{Code: "OS30"}),
			contractor: profile(
				models.QualificationCertificate{CategoryCode: "OG1", ClassLabel: "IV"},
			),
			want:   models.LightYellow,
			issues: []string{"Qualification insufficient for OS30 - requires avvalimento/RTI"},
		},
		{
			name:       "missing certifications",
			tender:     tenderOf(200000, []string{"ISO 9001", "ISO 45001", "CAM"}),
			contractor: profile(models.QualificationCertificate{CategoryCode: "OG1", ClassLabel: "I"}),
			want:       models.LightYellow,
			issues:     []string{"Missing certifications: ISO 45001, CAM"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Legal(tt.tender, tt.contractor)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Light)
			assert.Equal(t, tt.issues, got.Issues)
		})
	}
}

func TestLegalCeilingIgnoresMergePolicy(t *testing.T) {
	p, err := policy.Default()
	require.NoError(t, err)
	p.Matching.CertificateMerge = policy.MergeFirst
	engine, err := matching.NewEngine(p)
	require.NoError(t, err)
	a := NewAdvisor(p.Advisory, engine)

	contractor := profile(
		models.QualificationCertificate{CategoryCode: "OG1", ClassLabel: "II"},
		models.QualificationCertificate{CategoryCode: "OG1", ClassLabel: "IV"},
	)
	check, err := a.Legal(tenderOf(900000, []string{"ISO 9001"}, og1("II")), contractor)
	require.NoError(t, err)
	assert.Equal(t, models.LightGreen, check.Light)
	assert.Empty(t, check.Issues)
}

func TestLegalRejectsInvalidTender(t *testing.T) {
	a := newTestAdvisor(t)
	_, err := a.Legal(tenderOf(0, nil), profile())
	assert.ErrorIs(t, err, matching.ErrInvalidTender)
}

func TestEconomic(t *testing.T) {
	a := newTestAdvisor(t)

	tests := []struct {
		total float64
		want  models.Light
	}{
		{99999, models.LightYellow},
		{100000, models.LightGreen},
		{5000000, models.LightGreen},
		{5000001, models.LightYellow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, a.Economic(tenderOf(tt.total, nil)).Light, "total %.0f", tt.total)
	}

	assert.Equal(t, models.LightYellow, a.Economic(models.TenderRecord{}).Light)
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		legal, economic models.Light
		want            models.Recommendation
	}{
		{models.LightRed, models.LightGreen, models.RecommendDoNotParticipate},
		{models.LightRed, models.LightYellow, models.RecommendDoNotParticipate},
		{models.LightGreen, models.LightGreen, models.RecommendParticipate},
		{models.LightGreen, models.LightYellow, models.RecommendEvaluateCarefully},
		{models.LightYellow, models.LightGreen, models.RecommendEvaluateCarefully},
		{models.LightYellow, models.LightYellow, models.RecommendEvaluateCarefully},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Recommend(tt.legal, tt.economic), "%s/%s", tt.legal, tt.economic)
	}
}

func TestReport(t *testing.T) {
	a := newTestAdvisor(t)
	td := tenderOf(900000, nil, og1("III"))
	c := profile(models.QualificationCertificate{CategoryCode: "OG1", ClassLabel: "IV"})

	r, err := a.Report(td, c)
	require.NoError(t, err)
	assert.Equal(t, models.LightGreen, r.Legal.Light)
	assert.Equal(t, models.LightGreen, r.Economic.Light)
	assert.Equal(t, models.RecommendParticipate, r.Recommendation)
	assert.Equal(t, 100, r.Score.Total)
}
