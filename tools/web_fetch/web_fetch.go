package web_fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/findly/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/findly/tools/web_fetch/httpfetch"
	"github.com/mohammad-safakhou/findly/tools/web_fetch/models"
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultUserAgent = "findly/1.0 (+https://github.com/mohammad-safakhou/findly)"
)

// WebFetcher downloads a page and extracts its readable text. Any failure to
// obtain text is reported as apperr.SourceUnavailable.
type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
}

type FetcherType string

const (
	ChromedpFetcherType FetcherType = "chromedp"
	HTTPFetcherType     FetcherType = "http"
)

type Options struct {
	Timeout time.Duration
	// MaxChars rejects pages whose extracted text is longer. Zero means no limit.
	MaxChars  int
	UserAgent string
}

func NewWebFetcher(fetcherType FetcherType, opts Options) (WebFetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxChars < 0 {
		opts.MaxChars = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	switch fetcherType {
	case ChromedpFetcherType:
		return &chromedp.Fetch{Timeout: opts.Timeout, MaxChars: opts.MaxChars, UserAgent: opts.UserAgent}, nil
	case HTTPFetcherType, "":
		return httpfetch.New(opts.Timeout, opts.MaxChars, opts.UserAgent), nil
	default:
		return nil, fmt.Errorf("unsupported fetcher type: %s", fetcherType)
	}
}
