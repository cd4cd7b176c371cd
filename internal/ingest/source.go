package ingest

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/david/tender-matcher/internal/extract"
)

type documentKind int

const (
	kindUnknown documentKind = iota
	kindPDF
	kindHTML
	kindText
)

// NewSource picks the text acquisition source for an upload. PDF magic
// bytes win over a declared content type; otherwise the content type, the
// file extension and finally content sniffing decide.
func NewSource(u Upload) (extract.Source, error) {
	switch detectKind(u) {
	case kindPDF:
		return PDFSource{Data: u.Data}, nil
	case kindHTML:
		return HTMLSource{Data: u.Data, ContentType: u.ContentType}, nil
	case kindText:
		return extract.TextSource{Text: string(toUTF8(u.Data, u.ContentType))}, nil
	}
	return nil, fmt.Errorf("%w: %q (%s)", ErrUnsupportedDocument, u.Name, u.ContentType)
}

func detectKind(u Upload) documentKind {
	if bytes.HasPrefix(u.Data, []byte("%PDF-")) {
		return kindPDF
	}
	if mt, _, err := mime.ParseMediaType(u.ContentType); err == nil {
		if k := kindForMediaType(mt); k != kindUnknown {
			return k
		}
	}
	switch strings.ToLower(path.Ext(u.Name)) {
	case ".pdf":
		return kindPDF
	case ".html", ".htm", ".xhtml":
		return kindHTML
	case ".txt", ".text":
		return kindText
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(u.Data))
	return kindForMediaType(mt)
}

func kindForMediaType(mt string) documentKind {
	switch mt {
	case "application/pdf":
		return kindPDF
	case "text/html", "application/xhtml+xml":
		return kindHTML
	case "text/plain":
		return kindText
	}
	return kindUnknown
}
