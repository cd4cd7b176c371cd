package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/david/tender-matcher/internal/models"
	"github.com/david/tender-matcher/internal/policy"
)

type sampleFunc func(ctx context.Context) (Sample, error)

func (f sampleFunc) Sample(ctx context.Context) (Sample, error) { return f(ctx) }

func TestClassify(t *testing.T) {
	c := NewClassifier(policy.Classifier{MinTextLength: 200, MaxImages: 5}, nil)

	tests := []struct {
		name   string
		sample Sample
		want   models.DocumentType
	}{
		{"empty page", Sample{}, models.DocumentScanned},
		{"just under text threshold", Sample{Text: strings.Repeat("a", 199)}, models.DocumentScanned},
		{"whitespace does not count", Sample{Text: strings.Repeat(" ", 500)}, models.DocumentScanned},
		{"scanned wins over images", Sample{Text: "x", ImageCount: 50}, models.DocumentScanned},
		{"text at threshold", Sample{Text: strings.Repeat("a", 200)}, models.DocumentTextual},
		{"five images is still textual", Sample{Text: strings.Repeat("a", 300), ImageCount: 5}, models.DocumentTextual},
		{"six images is complex", Sample{Text: strings.Repeat("a", 300), ImageCount: 6}, models.DocumentComplex},
		{"runes not bytes", Sample{Text: strings.Repeat("à", 150)}, models.DocumentScanned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.sample))
		})
	}
}

func TestDetectFallsBackToTextual(t *testing.T) {
	c := NewClassifier(policy.Classifier{MinTextLength: 200, MaxImages: 5}, nil)

	failing := sampleFunc(func(context.Context) (Sample, error) {
		return Sample{}, errors.New("corrupt page tree")
	})
	assert.Equal(t, models.DocumentTextual, c.Detect(context.Background(), failing))

	panicking := sampleFunc(func(context.Context) (Sample, error) {
		panic("malformed xref")
	})
	assert.Equal(t, models.DocumentTextual, c.Detect(context.Background(), panicking))

	scanned := sampleFunc(func(context.Context) (Sample, error) {
		return Sample{Text: "p. 1"}, nil
	})
	assert.Equal(t, models.DocumentScanned, c.Detect(context.Background(), scanned))
}
