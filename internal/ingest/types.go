package ingest

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrUnsupportedDocument = errors.New("unsupported document type")
	ErrBlockedURL          = errors.New("url not allowed")
)

// FetchedDocument represents the raw result of a fetch operation.
type FetchedDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
	Headers     map[string][]string
}

// Fetcher retrieves raw content from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}

// Upload is a tender document received as bytes, either posted by an
// operator or downloaded by a Fetcher.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
	SourceURL   string
}
