package ingest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/tender-matcher/internal/extract"
)

// buildPDF writes a single-page PDF with one Helvetica font, the given
// content stream and a number of 1x1 image XObjects.
func buildPDF(t *testing.T, content string, images int) []byte {
	t.Helper()

	widths := strings.TrimSpace(strings.Repeat("500 ", 126-32+1))
	var xobjects strings.Builder
	for i := 0; i < images; i++ {
		fmt.Fprintf(&xobjects, "/Im%d %d 0 R ", i, 6+i)
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> /XObject << " +
			xobjects.String() + ">> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [" + widths + "] >>",
	}
	for i := 0; i < images; i++ {
		objects = append(objects, "<< /Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceGray /BitsPerComponent 8 /Length 1 >>\nstream\nX\nendstream")
	}

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return []byte(b.String())
}

func pdfString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return "(" + r.Replace(s) + ") Tj"
}

// textContent lays lines out top to bottom, 20pt apart.
func textContent(lines ...string) string {
	var b strings.Builder
	b.WriteString("BT\n/F1 12 Tf\n72 720 Td\n")
	for i, l := range lines {
		if i > 0 {
			b.WriteString("0 -20 Td\n")
		}
		b.WriteString(pdfString(l) + "\n")
	}
	b.WriteString("ET")
	return b.String()
}

func TestPDFSourceFastKeepsLinesAndWords(t *testing.T) {
	src := PDFSource{Data: buildPDF(t, textContent(
		"Stazione appaltante: Comune di Lecco",
		"CIG: 9A12345BCD",
		"Importo complessivo a base di gara: euro 1.250.000,00",
		"Categoria prevalente OG1 classifica (III)",
	), 0)}

	doc, err := src.Acquire(context.Background(), extract.StrategyFast)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"Stazione appaltante: Comune di Lecco",
		"CIG: 9A12345BCD",
		"Importo complessivo a base di gara: euro 1.250.000,00",
		"Categoria prevalente OG1 classifica (III)",
	}, "\n"), doc.Text)
	assert.Empty(t, doc.Elements)
}

func TestPDFSourceHiResOrdersByPosition(t *testing.T) {
	content := "BT\n/F1 12 Tf\n72 700 Td\n" + pdfString("Second line") + "\n0 20 Td\n" + pdfString("First line") + "\nET"
	src := PDFSource{Data: buildPDF(t, content, 0)}

	fast, err := src.Acquire(context.Background(), extract.StrategyFast)
	require.NoError(t, err)
	assert.Equal(t, "Second line\nFirst line", fast.Text)

	hiRes, err := src.Acquire(context.Background(), extract.StrategyHiRes)
	require.NoError(t, err)
	assert.Equal(t, "First line\nSecond line", hiRes.Text)
	assert.Equal(t, []extract.Element{
		{Kind: extract.ElementParagraph, Text: "First line"},
		{Kind: extract.ElementParagraph, Text: "Second line"},
	}, hiRes.Elements)
}

func TestPDFSourceHiResDetectsTableRows(t *testing.T) {
	content := "BT\n/F1 12 Tf\n72 720 Td\n" +
		pdfString("Categoria") + "\n200 0 Td\n" + pdfString("Classifica") + "\n" +
		"-200 -20 Td\n" + pdfString("OG2") + "\n200 0 Td\n" + pdfString("IV-bis") + "\nET"
	src := PDFSource{Data: buildPDF(t, content, 0)}

	doc, err := src.Acquire(context.Background(), extract.StrategyHiRes)
	require.NoError(t, err)
	assert.Equal(t, "Categoria | Classifica\nOG2 | IV-bis", doc.Text)
	require.Len(t, doc.Elements, 2)
	assert.Equal(t, extract.ElementTableRow, doc.Elements[1].Kind)
	assert.Equal(t, "OG2 | IV-bis", doc.Elements[1].Text)
}

func TestPDFSourceSample(t *testing.T) {
	src := PDFSource{Data: buildPDF(t, textContent("Bando di gara", "CIG: 9A12345BCD"), 7)}

	sample, err := src.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bando di gara\nCIG: 9A12345BCD", sample.Text)
	assert.Equal(t, 7, sample.ImageCount)
}

func TestPDFSourceInvalidData(t *testing.T) {
	src := PDFSource{Data: []byte("this is not a pdf")}

	_, err := src.Sample(context.Background())
	assert.Error(t, err)
	_, err = src.Acquire(context.Background(), extract.StrategyFast)
	assert.Error(t, err)
}

func TestPDFSourceCancelled(t *testing.T) {
	src := PDFSource{Data: buildPDF(t, textContent("Bando"), 0)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Acquire(ctx, extract.StrategyFast)
	assert.ErrorIs(t, err, context.Canceled)
}
