package qualification

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func standardTable(t *testing.T) *ClassTable {
	t.Helper()
	table, err := NewClassTable([]Tier{
		{"I", 258000}, {"II", 516000}, {"III", 1033000}, {"III-bis", 1500000},
		{"IV", 2066000}, {"IV-bis", 3500000}, {"V", 5165000}, {"VI", 10329000},
		{"VII", 15494000}, {"VIII", math.Inf(1)},
	})
	require.NoError(t, err)
	return table
}

func TestIsSufficient(t *testing.T) {
	table := standardTable(t)

	tests := []struct {
		name     string
		owned    string
		required string
		want     bool
	}{
		{"higher class", "IV", "III", true},
		{"lower class", "II", "IV", false},
		{"equal class", "III", "III", true},
		{"unknown owned", "IX", "I", false},
		{"unknown required", "I", "IX", false},
		{"bis above base", "III-bis", "III", true},
		{"bis below next", "III-bis", "IV", false},
		{"loose bis spelling", "iii bis", "III-bis", true},
		{"empty owned", "", "I", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.IsSufficient(tt.owned, tt.required))
		})
	}
}

func TestLegacyTableHasNoBisTiers(t *testing.T) {
	table, err := NewClassTable([]Tier{
		{"I", 258000}, {"II", 516000}, {"III", 1033000}, {"IV", 2066000},
		{"V", 3500000}, {"VI", 5165000}, {"VII", 10329000}, {"VIII", math.Inf(1)},
	})
	require.NoError(t, err)

	assert.False(t, table.IsSufficient("III-bis", "III"))
	assert.True(t, table.IsSufficient("V", "IV"))

	max, ok := table.MaxAmount("V")
	require.True(t, ok)
	assert.Equal(t, 3500000.0, max)
}

func TestMaxAmount(t *testing.T) {
	table := standardTable(t)

	max, ok := table.MaxAmount("III")
	require.True(t, ok)
	assert.Equal(t, 1033000.0, max)

	top, ok := table.MaxAmount("VIII")
	require.True(t, ok)
	assert.True(t, math.IsInf(top, 1))

	_, ok = table.MaxAmount("X")
	assert.False(t, ok)
}

func TestHighestAndLowest(t *testing.T) {
	table := standardTable(t)

	best, ok := table.Highest("II", "IV-bis", "nonsense", "III")
	require.True(t, ok)
	assert.Equal(t, "IV-bis", best)

	_, ok = table.Highest("nonsense")
	assert.False(t, ok)

	assert.Equal(t, "I", table.Lowest())
	assert.Len(t, table.Labels(), 10)
}

func TestNewClassTableRejectsBadTables(t *testing.T) {
	tests := []struct {
		name  string
		tiers []Tier
	}{
		{"empty", nil},
		{"duplicate", []Tier{{"I", 1}, {"i", 2}}},
		{"not increasing", []Tier{{"I", 10}, {"II", 5}}},
		{"unbounded middle", []Tier{{"I", math.Inf(1)}, {"II", 5}}},
		{"zero amount", []Tier{{"I", 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClassTable(tt.tiers)
			assert.ErrorIs(t, err, ErrInvalidTable)
		})
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"iv":        "IV",
		" III-bis ": "III-bis",
		"IIIbis":    "III-bis",
		"iv BIS":    "IV-bis",
		"II.":       "II",
		"bis":       "",
		"":          "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}
