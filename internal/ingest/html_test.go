package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/tender-matcher/internal/extract"
)

const tenderPage = `<!DOCTYPE html>
<html>
<head>
  <title>Bando</title>
  <script>alert("x")</script>
  <style>p { color: red }</style>
</head>
<body>
  <div class="content">
    <h1>Lavori di manutenzione straordinaria</h1>
    <p>Stazione appaltante: <strong>Comune di Bergamo</strong></p>
    <p>CIG: 8B98765XYZ</p>
    <table>
      <tr><th>Categoria</th><th>Classifica</th><th></th></tr>
      <tr><td>OG3</td><td><p>IV</p></td><td>prevalente</td></tr>
    </table>
    <ul>
      <li>Durata: 12 mesi</li>
    </ul>
    <img src="https://example.org/logo.png" alt="logo">
    <img src="https://example.org/map.png" alt="map">
  </div>
</body>
</html>`

func TestHTMLSourceAcquire(t *testing.T) {
	src := HTMLSource{Data: []byte(tenderPage), ContentType: "text/html; charset=utf-8"}

	doc, err := src.Acquire(context.Background(), extract.StrategyFast)
	require.NoError(t, err)

	assert.Equal(t, []extract.Element{
		{Kind: extract.ElementTitle, Text: "Lavori di manutenzione straordinaria"},
		{Kind: extract.ElementParagraph, Text: "Stazione appaltante: Comune di Bergamo"},
		{Kind: extract.ElementParagraph, Text: "CIG: 8B98765XYZ"},
		{Kind: extract.ElementTableRow, Text: "Categoria | Classifica"},
		{Kind: extract.ElementTableRow, Text: "OG3 | IV | prevalente"},
		{Kind: extract.ElementParagraph, Text: "Durata: 12 mesi"},
	}, doc.Elements)
	assert.NotContains(t, doc.Text, "alert")
	assert.NotContains(t, doc.Text, "color")
	assert.Contains(t, doc.Text, "CIG: 8B98765XYZ\nCategoria | Classifica")
}

func TestHTMLSourceSample(t *testing.T) {
	src := HTMLSource{Data: []byte(tenderPage)}

	sample, err := src.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sample.ImageCount)
	assert.Contains(t, sample.Text, "Comune di Bergamo")
}

func TestHTMLSourceFallsBackToBodyText(t *testing.T) {
	src := HTMLSource{Data: []byte("<html><body>Avviso   pubblico\n<br>CIG 7C12345ABC</body></html>")}

	doc, err := src.Acquire(context.Background(), extract.StrategyHiRes)
	require.NoError(t, err)
	assert.Nil(t, doc.Elements)
	assert.Equal(t, "Avviso pubblico\nCIG 7C12345ABC", doc.Text)
}

func TestHTMLSourceDecodesLatin1(t *testing.T) {
	// "più" in ISO-8859-1
	data := []byte("<p>Offerta economicamente pi\xf9 vantaggiosa</p>")
	src := HTMLSource{Data: data, ContentType: "text/html; charset=iso-8859-1"}

	doc, err := src.Acquire(context.Background(), extract.StrategyFast)
	require.NoError(t, err)
	assert.Equal(t, "Offerta economicamente più vantaggiosa", doc.Text)
}
