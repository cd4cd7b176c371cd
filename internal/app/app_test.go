package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/tender-matcher/internal/models"
	"github.com/david/tender-matcher/internal/policy"
)

func TestBuildDefault(t *testing.T) {
	c, err := Build("", nil)
	require.NoError(t, err)

	rec := c.Extractor.Extract("CIG: 7B45678CDE\nCategoria OG1 classifica II", nil)
	assert.Equal(t, "7B45678CDE", rec.Identifier)
	rec.Amounts.TotalContractValue = models.FloatPtr(640000)

	score, err := c.Engine.Score(rec, models.ContractorProfile{Name: "Edil Como"})
	require.NoError(t, err)
	assert.NotNil(t, score.MissingRequirements)
}

func TestBuildMissingPolicy(t *testing.T) {
	_, err := Build(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestBuildInvalidPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories: ["), 0o600))

	_, err := Build(path, nil)
	assert.ErrorIs(t, err, policy.ErrInvalidPolicy)
}
