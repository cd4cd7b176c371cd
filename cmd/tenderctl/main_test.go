package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/tender-matcher/internal/models"
)

func writeJSON(t *testing.T, dir, name string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func sampleTender() models.TenderRecord {
	return models.TenderRecord{
		Identifier:         "9A12345BCD",
		Title:              models.StringPtr("Manutenzione scuole"),
		Amounts:            models.Amounts{TotalContractValue: models.FloatPtr(900000)},
		Location:           models.Location{Region: models.StringPtr("Lombardia")},
		RequiredCategories: []models.CategoryRequirement{{Code: "OG1", RequiredClass: models.StringPtr("III"), IsMain: true}},
	}
}

func sampleContractor(name, region string) models.ContractorProfile {
	return models.ContractorProfile{
		Name:                      name,
		OperatingRegions:          []string{region},
		QualificationCertificates: []models.QualificationCertificate{{CategoryCode: "OG1", ClassLabel: "III"}},
	}
}

func TestRankCommand(t *testing.T) {
	dir := t.TempDir()
	tf := writeJSON(t, dir, "tender.json", sampleTender())
	cf := writeJSON(t, dir, "contractors.json", []models.ContractorProfile{
		sampleContractor("Beta Costruzioni", "Veneto"),
		sampleContractor("Alfa Edile", "Lombardia"),
	})

	out := execute(t, "rank", "--tender", tf, "--contractors", cf)

	assert.Less(t, strings.Index(out, "Alfa Edile"), strings.Index(out, "Beta Costruzioni"))
	assert.Contains(t, strings.ToLower(out), "2 of 2 contractors")
}

func TestAdviseCommand(t *testing.T) {
	dir := t.TempDir()
	tf := writeJSON(t, dir, "tender.json", sampleTender())
	cf := writeJSON(t, dir, "contractor.json", sampleContractor("Alfa Edile", "Lombardia"))

	out := execute(t, "advise", "--tender", tf, "--contractor", cf)

	lower := strings.ToLower(out)
	assert.Contains(t, lower, string(models.RecommendParticipate))
	assert.Contains(t, lower, "alfa edile / 9a12345bcd")
}

func TestExtractCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bando.txt")
	notice := "Stazione appaltante: Comune di Como\nCIG: 7B45678CDE\nCategoria prevalente OG1 classifica II\n" +
		"Termine ultimo per la presentazione delle offerte: 15/03/2026 ore 12:00"
	require.NoError(t, os.WriteFile(path, []byte(notice), 0o600))

	out := execute(t, "extract", path, "--region", "Lombardia")

	var rec models.TenderRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec), out)
	assert.Equal(t, "7B45678CDE", rec.Identifier)
	assert.Equal(t, "Lombardia", rec.Location.RegionName())
	require.NotNil(t, rec.Deadline)
}
