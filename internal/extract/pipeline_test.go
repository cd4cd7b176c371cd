package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/tender-matcher/internal/models"
	"github.com/david/tender-matcher/internal/policy"
)

type fakeSource struct {
	sample    Sample
	sampleErr error
	docs      map[Strategy]Document
	errs      map[Strategy]error
	requested []Strategy
}

func (f *fakeSource) Sample(context.Context) (Sample, error) {
	return f.sample, f.sampleErr
}

func (f *fakeSource) Acquire(_ context.Context, s Strategy) (Document, error) {
	f.requested = append(f.requested, s)
	if err := f.errs[s]; err != nil {
		return Document{}, err
	}
	return f.docs[s], nil
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	e := newTestExtractor(t)
	return NewPipeline(e, NewClassifier(policy.Classifier{MinTextLength: 200, MaxImages: 5}, nil), nil)
}

func TestStrategyFor(t *testing.T) {
	assert.Equal(t, StrategyFast, StrategyFor(models.DocumentTextual))
	assert.Equal(t, StrategyHiRes, StrategyFor(models.DocumentScanned))
	assert.Equal(t, StrategyHiRes, StrategyFor(models.DocumentComplex))
}

func TestPipelineRun(t *testing.T) {
	ctx := context.Background()

	t.Run("textual document uses fast strategy", func(t *testing.T) {
		src := &fakeSource{
			sample: Sample{Text: strings.Repeat("testo ", 50)},
			docs:   map[Strategy]Document{StrategyFast: {Text: sampleNotice}},
		}
		rec, err := newTestPipeline(t).Run(ctx, src)
		require.NoError(t, err)
		assert.Equal(t, []Strategy{StrategyFast}, src.requested)
		assert.Equal(t, models.DocumentTextual, rec.DocumentType)
		assert.Equal(t, "9A12345BCD", rec.Identifier)
	})

	t.Run("scanned document requests hi_res", func(t *testing.T) {
		src := &fakeSource{
			docs: map[Strategy]Document{StrategyHiRes: {Text: sampleNotice}},
		}
		rec, err := newTestPipeline(t).Run(ctx, src)
		require.NoError(t, err)
		assert.Equal(t, []Strategy{StrategyHiRes}, src.requested)
		assert.Equal(t, models.DocumentScanned, rec.DocumentType)
		assert.Equal(t, 1.0, rec.ConfidenceScore)
	})

	t.Run("hi_res failure falls back to fast", func(t *testing.T) {
		src := &fakeSource{
			sample: Sample{Text: strings.Repeat("testo ", 50), ImageCount: 12},
			errs:   map[Strategy]error{StrategyHiRes: errors.New("ocr unavailable")},
			docs:   map[Strategy]Document{StrategyFast: {Text: "CIG: 1234567890"}},
		}
		rec, err := newTestPipeline(t).Run(ctx, src)
		require.NoError(t, err)
		assert.Equal(t, []Strategy{StrategyHiRes, StrategyFast}, src.requested)
		assert.Equal(t, models.DocumentComplex, rec.DocumentType)
		assert.Equal(t, "1234567890", rec.Identifier)
	})

	t.Run("classifier error still extracts", func(t *testing.T) {
		src := &fakeSource{
			sampleErr: errors.New("broken sample"),
			docs:      map[Strategy]Document{StrategyFast: {Text: "OG1 classifica II"}},
		}
		rec, err := newTestPipeline(t).Run(ctx, src)
		require.NoError(t, err)
		assert.Equal(t, models.DocumentTextual, rec.DocumentType)
		require.Len(t, rec.RequiredCategories, 1)
	})

	t.Run("no text is fatal", func(t *testing.T) {
		src := &fakeSource{
			docs: map[Strategy]Document{StrategyHiRes: {Text: "   "}, StrategyFast: {Text: ""}},
		}
		_, err := newTestPipeline(t).Run(ctx, src)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNoText))
		assert.Equal(t, []Strategy{StrategyHiRes, StrategyFast}, src.requested)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		src := &fakeSource{
			sample: Sample{Text: strings.Repeat("testo ", 50)},
			docs:   map[Strategy]Document{StrategyFast: {Text: sampleNotice}},
		}
		_, err := newTestPipeline(t).Run(cctx, src)
		assert.ErrorIs(t, err, ErrNoText)
		assert.Empty(t, src.requested)
	})
}

func TestTextSource(t *testing.T) {
	src := TextSource{Text: strings.Repeat("à", 3000)}
	s, err := src.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2000, len([]rune(s.Text)))

	rec, err := newTestPipeline(t).Run(context.Background(), TextSource{Text: sampleNotice})
	require.NoError(t, err)
	assert.Equal(t, models.DocumentTextual, rec.DocumentType)
}
