package web_fetch

import (
	"testing"

	"github.com/mohammad-safakhou/findly/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/findly/tools/web_fetch/httpfetch"
)

func TestNewWebFetcherDefaultsToNoTextLimit(t *testing.T) {
	f, err := NewWebFetcher(ChromedpFetcherType, Options{})
	if err != nil {
		t.Fatalf("NewWebFetcher: %v", err)
	}
	cf, ok := f.(*chromedp.Fetch)
	if !ok {
		t.Fatalf("unexpected fetcher %T", f)
	}
	if cf.MaxChars != 0 || cf.Timeout != DefaultTimeout || cf.UserAgent != DefaultUserAgent {
		t.Fatalf("unexpected defaults: %+v", cf)
	}
}

func TestNewWebFetcherTypes(t *testing.T) {
	f, err := NewWebFetcher("", Options{MaxChars: 1000})
	if err != nil {
		t.Fatalf("NewWebFetcher: %v", err)
	}
	if _, ok := f.(*httpfetch.Fetch); !ok {
		t.Fatalf("expected the http fetcher by default, got %T", f)
	}
	if _, err := NewWebFetcher("lynx", Options{}); err == nil {
		t.Fatalf("expected an error for an unknown fetcher")
	}
}
