package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

var blockedPrefixStrings = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"100.64.0.0/10",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
}

var blockedPrefixes = func() []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(blockedPrefixStrings))
	for _, s := range blockedPrefixStrings {
		if p, err := netip.ParsePrefix(s); err == nil {
			prefixes = append(prefixes, p)
		}
	}
	return prefixes
}()

// CollyFetcher downloads single tender documents (notices, disciplinari,
// attachments). Connections to private and loopback addresses are refused
// unless AllowPrivate is set.
type CollyFetcher struct {
	UserAgent       string
	MaxRetries      int
	RequestTimeout  time.Duration
	MaxBodySize     int // bytes, 0 = unlimited
	IgnoreRobotsTxt bool
	AllowPrivate    bool
	Log             *zap.Logger
}

func NewCollyFetcher(log *zap.Logger) *CollyFetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &CollyFetcher{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		MaxRetries:     2,
		RequestTimeout: 30 * time.Second,
		MaxBodySize:    25 * 1024 * 1024,
		Log:            log,
	}
}

func (f *CollyFetcher) buildCollector(ctx context.Context, host string) *colly.Collector {
	opts := []colly.CollectorOption{
		colly.UserAgent(f.UserAgent),
		colly.MaxBodySize(f.MaxBodySize),
		colly.AllowURLRevisit(),
		colly.AllowedDomains(host),
		colly.StdlibContext(ctx),
	}
	if f.IgnoreRobotsTxt {
		opts = append(opts, colly.IgnoreRobotsTxt())
	}

	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(f.RequestTimeout)

	if !f.AllowPrivate {
		c.WithTransport(&http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           safeDialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		})
		c.SetRedirectHandler(safeCheckRedirect)
	}

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/pdf,text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "it-IT,it;q=0.9,en;q=0.5")
	})
	return c
}

// Fetch downloads targetURL, retrying timeouts and 429/5xx responses with
// exponential backoff.
func (f *CollyFetcher) Fetch(ctx context.Context, targetURL string) (*FetchedDocument, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrBlockedURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrBlockedURL)
	}

	c := f.buildCollector(ctx, u.Hostname())

	var doc *FetchedDocument
	var status int
	c.OnResponse(func(r *colly.Response) {
		doc = &FetchedDocument{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        io.NopCloser(bytes.NewReader(r.Body)),
			FetchedAt:   time.Now(),
			Headers:     map[string][]string(r.Headers.Clone()),
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	var lastErr error
	for attempt := 0; attempt <= f.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff(attempt)):
			}
			f.Log.Debug("retrying fetch",
				zap.String("url", targetURL),
				zap.Int("attempt", attempt),
				zap.Int("status", status),
				zap.Error(lastErr))
		}

		doc, status = nil, 0
		lastErr = c.Visit(targetURL)
		if lastErr == nil && doc != nil {
			return doc, nil
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("no response received for %s", targetURL)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !shouldRetry(lastErr, status) {
			break
		}
	}

	if status != 0 {
		return nil, fmt.Errorf("fetch %s: status %d: %w", targetURL, status, lastErr)
	}
	return nil, fmt.Errorf("fetch %s: %w", targetURL, lastErr)
}

// Exponential backoff: 0.5s, 1s, 2s + jitter
func backoff(attempt int) time.Duration {
	base := time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
	return base + time.Duration(rand.Intn(100))*time.Millisecond
}

// shouldRetry determines if an error or status code should trigger a retry
func shouldRetry(err error, statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	var timeout interface{ Timeout() bool }
	return err != nil && errors.As(err, &timeout) && timeout.Timeout()
}

// safeDialContext refuses connections to private, loopback and link-local
// addresses.
func safeDialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	d := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("%s resolved to no addresses", host)
	}
	for _, ip := range ips {
		if IsPrivateIP(ip) {
			return nil, fmt.Errorf("%w: private address %s", ErrBlockedURL, ip)
		}
	}

	// Dial the vetted address, not the name.
	return d.DialContext(ctx, network, net.JoinHostPort(ips[0].String(), port))
}

// IsPrivateIP reports whether ip is loopback, link-local, multicast,
// unspecified or inside one of the blocked private ranges.
func IsPrivateIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if ip.IsLoopback() || ip.IsLinkLocalMulticast() || ip.IsLinkLocalUnicast() || ip.IsMulticast() || ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}

	addr, ok := netip.AddrFromSlice(ip)
	if ok {
		for _, prefix := range blockedPrefixes {
			if prefix.Contains(addr.Unmap()) {
				return true
			}
		}
	}
	return false
}

// safeCheckRedirect limits redirects and validates destinations
func safeCheckRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("stopped after 10 redirects")
	}
	if req.URL == nil {
		return fmt.Errorf("invalid redirect URL")
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("%w: redirect scheme %q", ErrBlockedURL, req.URL.Scheme)
	}

	host := req.URL.Hostname()
	if host == "" {
		return fmt.Errorf("redirect host missing")
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".local") {
		return fmt.Errorf("%w: redirect to internal host", ErrBlockedURL)
	}
	ips, err := net.DefaultResolver.LookupIP(req.Context(), "ip", host)
	if err != nil {
		return err
	}
	for _, ip := range ips {
		if IsPrivateIP(ip) {
			return fmt.Errorf("%w: redirect to private address %s", ErrBlockedURL, ip)
		}
	}
	return nil
}
