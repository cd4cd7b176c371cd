package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/david/tender-matcher/internal/models"
	"github.com/david/tender-matcher/internal/policy"
)

// Sample is a representative segment of a document, typically its first
// page.
type Sample struct {
	Text       string
	ImageCount int
}

// Sampler yields a Sample for classification.
type Sampler interface {
	Sample(ctx context.Context) (Sample, error)
}

// Classifier decides the document type from a sample.
type Classifier struct {
	MinTextLength int
	MaxImages     int
	log           *zap.Logger
}

func NewClassifier(cfg policy.Classifier, log *zap.Logger) Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	return Classifier{MinTextLength: cfg.MinTextLength, MaxImages: cfg.MaxImages, log: log}
}

// Classify: little extractable text means a scanned page; otherwise many
// images mean a complex layout; otherwise textual.
func (c Classifier) Classify(s Sample) models.DocumentType {
	if utf8.RuneCountInString(strings.TrimSpace(s.Text)) < c.MinTextLength {
		return models.DocumentScanned
	}
	if s.ImageCount > c.MaxImages {
		return models.DocumentComplex
	}
	return models.DocumentTextual
}

// Detect samples the document and classifies it. Any sampling error or
// panic falls back to textual so that classification never blocks
// extraction.
func (c Classifier) Detect(ctx context.Context, s Sampler) (dt models.DocumentType) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("document classification panicked, assuming textual", zap.String("panic", fmt.Sprint(r)))
			dt = models.DocumentTextual
		}
	}()

	sample, err := s.Sample(ctx)
	if err != nil {
		c.log.Warn("document classification failed, assuming textual", zap.Error(err))
		return models.DocumentTextual
	}
	return c.Classify(sample)
}
