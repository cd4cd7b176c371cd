package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/david/tender-matcher/internal/models"
)

// ErrNoText is the only fatal extraction outcome: no strategy produced any
// text.
var ErrNoText = errors.New("no text could be acquired")

// Strategy names an acquisition quality tier.
type Strategy string

const (
	StrategyFast  Strategy = "fast"
	StrategyHiRes Strategy = "hi_res"
)

// StrategyFor maps a document type to the acquisition strategy to request.
func StrategyFor(dt models.DocumentType) Strategy {
	switch dt {
	case models.DocumentScanned, models.DocumentComplex:
		return StrategyHiRes
	default:
		return StrategyFast
	}
}

// Document is acquired text plus optional structural elements.
type Document struct {
	Text     string
	Elements []Element
}

// Source is a document that can be sampled and converted to text.
type Source interface {
	Sampler
	Acquire(ctx context.Context, strategy Strategy) (Document, error)
}

// Pipeline sequences classification, text acquisition, field extraction,
// confidence scoring and assembly.
type Pipeline struct {
	extractor  *Extractor
	classifier Classifier
	log        *zap.Logger
}

func NewPipeline(extractor *Extractor, classifier Classifier, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{extractor: extractor, classifier: classifier, log: log}
}

// Run extracts one tender record from src. When the preferred strategy
// yields no text the fast strategy is tried before giving up with
// ErrNoText.
func (p *Pipeline) Run(ctx context.Context, src Source) (models.TenderRecord, error) {
	docType := p.classifier.Detect(ctx, src)
	strategy := StrategyFor(docType)

	doc, err := acquire(ctx, src, strategy)
	if err != nil && strategy != StrategyFast {
		p.log.Warn("acquisition failed, retrying with fast strategy",
			zap.String("strategy", string(strategy)), zap.Error(err))
		doc, err = acquire(ctx, src, StrategyFast)
	}
	if err != nil {
		return models.TenderRecord{}, fmt.Errorf("%w: %v", ErrNoText, err)
	}

	rec := p.extractor.Extract(doc.Text, doc.Elements)
	rec.DocumentType = docType

	p.log.Debug("tender extracted",
		zap.String("identifier", rec.Identifier),
		zap.String("document_type", string(docType)),
		zap.Int("categories", len(rec.RequiredCategories)),
		zap.Float64("confidence", rec.ConfidenceScore))
	return rec, nil
}

func acquire(ctx context.Context, src Source, strategy Strategy) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	doc, err := src.Acquire(ctx, strategy)
	if err != nil {
		return Document{}, err
	}
	if strings.TrimSpace(doc.Text) == "" {
		return Document{}, fmt.Errorf("%s strategy returned empty text", strategy)
	}
	return doc, nil
}

// TextSource serves already extracted text. It samples the first
// sampleSize characters and reports no images.
type TextSource struct {
	Text     string
	Elements []Element
}

const sampleSize = 2000

func (s TextSource) Sample(context.Context) (Sample, error) {
	text := s.Text
	if r := []rune(text); len(r) > sampleSize {
		text = string(r[:sampleSize])
	}
	return Sample{Text: text}, nil
}

func (s TextSource) Acquire(context.Context, Strategy) (Document, error) {
	return Document{Text: s.Text, Elements: s.Elements}, nil
}
