package ingest

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html/charset"

	"github.com/david/tender-matcher/internal/extract"
)

var htmlPolicy = bluemonday.UGCPolicy()

const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, dt, dd, pre, blockquote, tr, div"

// HTMLSource reads tender pages published as HTML. Markup is decoded to
// UTF-8 and sanitized before parsing. Both strategies return the same
// document since the markup already carries the structure.
type HTMLSource struct {
	Data        []byte
	ContentType string
}

func (s HTMLSource) parse() (*goquery.Document, error) {
	data := toUTF8(s.Data, s.ContentType)
	return goquery.NewDocumentFromReader(bytes.NewReader(htmlPolicy.SanitizeBytes(data)))
}

// toUTF8 decodes data using the declared or sniffed charset. Valid UTF-8
// is kept as is unless a charset was declared.
func toUTF8(data []byte, contentType string) []byte {
	enc, name, certain := charset.DetermineEncoding(data, contentType)
	if name == "utf-8" || (!certain && utf8.Valid(data)) {
		return data
	}
	if decoded, err := enc.NewDecoder().Bytes(data); err == nil {
		return decoded
	}
	return data
}

func (s HTMLSource) Sample(ctx context.Context) (extract.Sample, error) {
	doc, err := s.parse()
	if err != nil {
		return extract.Sample{}, err
	}
	text, _ := documentText(doc)
	if r := []rune(text); len(r) > 2000 {
		text = string(r[:2000])
	}
	return extract.Sample{Text: text, ImageCount: doc.Find("img").Length()}, nil
}

func (s HTMLSource) Acquire(ctx context.Context, _ extract.Strategy) (extract.Document, error) {
	if err := ctx.Err(); err != nil {
		return extract.Document{}, err
	}
	doc, err := s.parse()
	if err != nil {
		return extract.Document{}, err
	}
	text, elements := documentText(doc)
	return extract.Document{Text: text, Elements: elements}, nil
}

// documentText walks block elements in document order. Headings become
// titles, table rows become cells joined by " | " and other leaf blocks
// become paragraphs. Pages without any block markup fall back to the body
// text.
func documentText(doc *goquery.Document) (string, []extract.Element) {
	var lines []string
	var elements []extract.Element

	doc.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		node := goquery.NodeName(sel)
		if node != "tr" && sel.ParentsFiltered("tr").Length() > 0 {
			return
		}

		var el extract.Element
		switch node {
		case "tr":
			var cells []string
			sel.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
				if c := normalizeSpace(cell.Text()); c != "" {
					cells = append(cells, c)
				}
			})
			if len(cells) == 0 {
				return
			}
			el = extract.Element{Kind: extract.ElementTableRow, Text: strings.Join(cells, " | ")}
		case "h1", "h2", "h3", "h4", "h5", "h6":
			el = extract.Element{Kind: extract.ElementTitle, Text: normalizeSpace(sel.Text())}
		default:
			// Containers are visited through their children.
			if sel.Find(blockSelector+", table").Length() > 0 {
				return
			}
			el = extract.Element{Kind: extract.ElementParagraph, Text: normalizeSpace(sel.Text())}
		}
		if el.Text == "" {
			return
		}
		lines = append(lines, el.Text)
		elements = append(elements, el)
	})

	if len(lines) == 0 {
		var body []string
		for _, line := range strings.Split(doc.Find("body").Text(), "\n") {
			if l := normalizeSpace(line); l != "" {
				body = append(body, l)
			}
		}
		return strings.Join(body, "\n"), nil
	}
	return strings.Join(lines, "\n"), elements
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
