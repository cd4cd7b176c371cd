package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	rpdf "rsc.io/pdf"

	"github.com/david/tender-matcher/internal/extract"
)

// Glyph spacing thresholds, as fractions of the font size.
const (
	wordGap   = 0.15
	columnGap = 2.0
	lineSlack = 0.5
)

// PDFSource reads tender notices from PDF bytes. The fast strategy keeps
// the content stream order; hi_res rebuilds lines from glyph positions and
// reports wide gaps as table rows.
type PDFSource struct {
	Data []byte
}

func (s PDFSource) open() (*rpdf.Reader, error) {
	r, err := rpdf.NewReader(bytes.NewReader(s.Data), int64(len(s.Data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	if r.NumPage() == 0 {
		return nil, errors.New("pdf has no pages")
	}
	return r, nil
}

// Sample returns the first page text and the number of images it draws.
func (s PDFSource) Sample(ctx context.Context) (sample extract.Sample, err error) {
	defer recoverPDF(&err)

	r, err := s.open()
	if err != nil {
		return extract.Sample{}, err
	}
	page := r.Page(1)
	if page.V.IsNull() {
		return extract.Sample{}, errors.New("pdf first page missing")
	}
	var lines []string
	for _, run := range streamRuns(page.Content().Text) {
		lines = append(lines, joinGlyphs(run, false).text)
	}
	return extract.Sample{Text: strings.Join(lines, "\n"), ImageCount: countImages(page)}, nil
}

func (s PDFSource) Acquire(ctx context.Context, strategy extract.Strategy) (doc extract.Document, err error) {
	defer recoverPDF(&err)

	r, err := s.open()
	if err != nil {
		return extract.Document{}, err
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return extract.Document{}, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		glyphs := page.Content().Text

		var lines []string
		if strategy == extract.StrategyHiRes {
			for _, row := range layoutRows(glyphs) {
				l := joinGlyphs(row, true)
				lines = append(lines, l.text)
				kind := extract.ElementParagraph
				if l.columns > 1 {
					kind = extract.ElementTableRow
				}
				doc.Elements = append(doc.Elements, extract.Element{Kind: kind, Text: l.text})
			}
		} else {
			for _, run := range streamRuns(glyphs) {
				lines = append(lines, joinGlyphs(run, false).text)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}

	doc.Text = strings.Join(pages, "\n\n")
	return doc, nil
}

func recoverPDF(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("pdf parser panic: %v", r)
	}
}

// countImages counts image XObjects in the page resources.
func countImages(page rpdf.Page) int {
	xobjects := page.Resources().Key("XObject")
	n := 0
	for _, name := range xobjects.Keys() {
		if xobjects.Key(name).Key("Subtype").Name() == "Image" {
			n++
		}
	}
	return n
}

func fontSize(g rpdf.Text) float64 {
	if g.FontSize <= 0 {
		return 10
	}
	return g.FontSize
}

func sameLine(a, b rpdf.Text) bool {
	return math.Abs(a.Y-b.Y) <= lineSlack*math.Max(fontSize(a), fontSize(b))
}

// streamRuns splits glyphs in content order wherever the baseline moves.
func streamRuns(glyphs []rpdf.Text) [][]rpdf.Text {
	var runs [][]rpdf.Text
	start := 0
	for i := 1; i <= len(glyphs); i++ {
		if i == len(glyphs) || !sameLine(glyphs[i-1], glyphs[i]) {
			if i > start {
				runs = append(runs, glyphs[start:i])
			}
			start = i
		}
	}
	return runs
}

// layoutRows groups glyphs by baseline, top of page first, each row sorted
// left to right.
func layoutRows(glyphs []rpdf.Text) [][]rpdf.Text {
	sorted := append([]rpdf.Text(nil), glyphs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var rows [][]rpdf.Text
	for start := 0; start < len(sorted); {
		end := start + 1
		for end < len(sorted) && sameLine(sorted[start], sorted[end]) {
			end++
		}
		row := sorted[start:end]
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })
		rows = append(rows, row)
		start = end
	}
	return rows
}

type glyphLine struct {
	text    string
	columns int
}

// joinGlyphs rebuilds words from glyph advances. The parser drops space
// glyphs, so word breaks are inferred from horizontal gaps. With cells set,
// gaps wider than columnGap become " | " separators.
func joinGlyphs(run []rpdf.Text, cells bool) glyphLine {
	var b strings.Builder
	columns := 1
	for i, g := range run {
		if i > 0 {
			prev := run[i-1]
			width := prev.W
			if width <= 0 {
				width = 0.5 * fontSize(prev)
			}
			gap := g.X - (prev.X + width)
			switch {
			case cells && gap > columnGap*fontSize(g):
				b.WriteString(" | ")
				columns++
			case gap > wordGap*fontSize(g):
				b.WriteByte(' ')
			}
		}
		if strings.TrimSpace(g.S) == "" {
			if b.Len() > 0 && !strings.HasSuffix(b.String(), " ") {
				b.WriteByte(' ')
			}
			continue
		}
		b.WriteString(g.S)
	}
	return glyphLine{text: strings.Join(strings.Fields(b.String()), " "), columns: columns}
}
