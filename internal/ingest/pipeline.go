package ingest

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/david/tender-matcher/internal/extract"
	"github.com/david/tender-matcher/internal/logger"
	"github.com/david/tender-matcher/internal/models"
)

// TenderStore persists extracted tenders, upserting on identifier.
type TenderStore interface {
	UpsertTender(ctx context.Context, t models.Tender) (*models.Tender, error)
}

// RunStore tracks ingestion runs.
type RunStore interface {
	StartRun(ctx context.Context, source string) (string, error)
	FinishRun(ctx context.Context, run models.IngestRun) error
}

// Ingester turns uploaded or fetched documents into persisted tenders.
// Runs and Fetcher are optional.
type Ingester struct {
	Pipeline *extract.Pipeline
	Tenders  TenderStore
	Runs     RunStore
	Fetcher  Fetcher
	Log      *zap.Logger
}

func NewIngester(pipeline *extract.Pipeline, tenders TenderStore, runs RunStore, fetcher Fetcher, log *zap.Logger) *Ingester {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingester{Pipeline: pipeline, Tenders: tenders, Runs: runs, Fetcher: fetcher, Log: log}
}

// IngestDocument extracts, enriches and stores one document.
func (in *Ingester) IngestDocument(ctx context.Context, u Upload, enrich models.TenderEnrichment) (*models.Tender, error) {
	source := u.SourceURL
	if source == "" {
		source = u.Name
	}
	return in.track(ctx, source, func(runID string) (*models.Tender, error) {
		return in.ingest(ctx, u, enrich, runID)
	})
}

// IngestURL downloads a tender document and ingests it.
func (in *Ingester) IngestURL(ctx context.Context, rawURL string, enrich models.TenderEnrichment) (*models.Tender, error) {
	if in.Fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured")
	}
	return in.track(ctx, rawURL, func(runID string) (*models.Tender, error) {
		u, err := FetchUpload(ctx, in.Fetcher, rawURL)
		if err != nil {
			return nil, err
		}
		return in.ingest(ctx, u, enrich, runID)
	})
}

// FetchUpload downloads a document into an Upload named after the last
// path segment of the final URL.
func FetchUpload(ctx context.Context, fetcher Fetcher, rawURL string) (Upload, error) {
	doc, err := fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return Upload{}, err
	}
	defer doc.Body.Close()

	data, err := io.ReadAll(doc.Body)
	if err != nil {
		return Upload{}, fmt.Errorf("read %s: %w", rawURL, err)
	}
	u := Upload{Name: rawURL, ContentType: doc.ContentType, Data: data, SourceURL: doc.URL}
	if parsed, err := url.Parse(doc.URL); err == nil {
		u.Name = path.Base(parsed.Path)
	}
	return u, nil
}

func (in *Ingester) track(ctx context.Context, source string, fn func(runID string) (*models.Tender, error)) (*models.Tender, error) {
	run := models.IngestRun{Source: source, StartedAt: time.Now()}
	if in.Runs != nil {
		id, err := in.Runs.StartRun(ctx, source)
		if err != nil {
			in.Log.Warn("failed to create ingest run", zap.Error(err))
		} else {
			run.ID = id
		}
	}
	log := logger.WithFields(in.Log, logger.RunFields(run.ID, source)...)

	tender, err := fn(run.ID)

	run.Details = map[string]any{"duration_ms": time.Since(run.StartedAt).Milliseconds()}
	if err != nil {
		run.Status = models.RunFailed
		run.Errors = 1
		run.Details["error"] = logger.Truncate(err.Error(), 500)
		log.Warn("ingestion failed", zap.Error(err))
	} else {
		run.Status = models.RunCompleted
		run.ItemsFound, run.ItemsSaved = 1, 1
		run.Details["identifier"] = tender.Identifier
		run.Details["document_type"] = string(tender.DocumentType)
		run.Details["confidence"] = tender.ConfidenceScore
		log.Info("tender ingested",
			zap.String(logger.FieldTender, tender.Identifier),
			zap.Float64("confidence", tender.ConfidenceScore))
	}

	if in.Runs != nil && run.ID != "" {
		// The request context may already be cancelled; the run row should
		// still be closed.
		if err := in.Runs.FinishRun(context.WithoutCancel(ctx), run); err != nil {
			log.Warn("failed to update ingest run", zap.Error(err))
		}
	}
	return tender, err
}

// Extract runs the extraction pipeline over one document and applies the
// surrogate identifier, the parsed deadline and the caller enrichment.
// Nothing is stored.
func (in *Ingester) Extract(ctx context.Context, u Upload, enrich models.TenderEnrichment) (models.TenderRecord, error) {
	src, err := NewSource(u)
	if err != nil {
		return models.TenderRecord{}, err
	}
	capture := &capturingSource{Source: src}

	rec, err := in.Pipeline.Run(ctx, capture)
	if err != nil {
		return models.TenderRecord{}, err
	}

	if rec.Identifier == "" {
		rec.Identifier = SurrogateIdentifier(u.Data)
		rec.IdentifierSynthetic = true
	}
	if enrich.Deadline == nil {
		rec.Deadline = ParseDeadline(capture.text)
	}
	enrich.Apply(&rec)
	sanitizeRecord(&rec)
	return rec, nil
}

func (in *Ingester) ingest(ctx context.Context, u Upload, enrich models.TenderEnrichment, runID string) (*models.Tender, error) {
	rec, err := in.Extract(ctx, u, enrich)
	if err != nil {
		return nil, err
	}

	t := models.Tender{TenderRecord: rec, SourceURL: u.SourceURL}
	if runID != "" {
		t.SourceRunID = &runID
	}
	saved, err := in.Tenders.UpsertTender(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("save tender %s: %w", rec.Identifier, err)
	}
	return saved, nil
}

// ReadText returns the plain text of a document using the fast strategy,
// falling back to hi_res.
func ReadText(ctx context.Context, u Upload) (string, error) {
	src, err := NewSource(u)
	if err != nil {
		return "", err
	}
	var lastErr error
	for _, strategy := range []extract.Strategy{extract.StrategyFast, extract.StrategyHiRes} {
		doc, err := src.Acquire(ctx, strategy)
		if err != nil {
			lastErr = err
			continue
		}
		if strings.TrimSpace(doc.Text) != "" {
			return doc.Text, nil
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("%w: %v", extract.ErrNoText, lastErr)
	}
	return "", extract.ErrNoText
}

// capturingSource keeps the last successfully acquired text for the
// deadline parser.
type capturingSource struct {
	extract.Source
	text string
}

func (c *capturingSource) Acquire(ctx context.Context, strategy extract.Strategy) (extract.Document, error) {
	doc, err := c.Source.Acquire(ctx, strategy)
	if err == nil {
		c.text = doc.Text
	}
	return doc, err
}

func sanitizeRecord(rec *models.TenderRecord) {
	for _, p := range []*string{rec.Title, rec.ContractingAuthority, rec.SecondaryIdentifier} {
		if p != nil {
			*p = sanitizeUTF8(*p)
		}
	}
}

// sanitizeUTF8 removes invalid UTF-8 byte sequences that cause PostgreSQL errors.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
