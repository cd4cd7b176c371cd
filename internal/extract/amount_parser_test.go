package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		raw    string
		want   float64
		wantOK bool
	}{
		{"1.234.567,89", 1234567.89, true},
		{"1234,50", 1234.50, true},
		{"€ 1.250.000,00", 1250000, true},
		{"1.250.000", 1250000, true},
		{"500.000 euro", 500000, true},
		{"1'000,00", 1000, true},
		{"12.5", 12.5, true},
		{"25.000,00;", 25000, true},
		{"not a number", 0, false},
		{"", 0, false},
		{"€", 0, false},
		{"-5", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := NormalizeAmount(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
