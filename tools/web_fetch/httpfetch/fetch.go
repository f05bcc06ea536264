package httpfetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/tools/web_fetch/models"
)

// DefaultMaxBodyBytes is the largest HTML response that is accepted.
const DefaultMaxBodyBytes = 10 << 20

type Fetch struct {
	client       *http.Client
	maxChars     int
	maxBodyBytes int64
	userAgent    string
}

// New builds an HTTP fetcher. maxChars rejects pages with longer text; zero
// means no limit.
func New(timeout time.Duration, maxChars int, userAgent string) *Fetch {
	return &Fetch{
		client:       &http.Client{Timeout: timeout},
		maxChars:     maxChars,
		maxBodyBytes: DefaultMaxBodyBytes,
		userAgent:    userAgent,
	}
}

func (f *Fetch) Exec(ctx context.Context, rawURL string) (models.Result, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.Result{}, apperr.SourceUnavailable("fetch", errors.New("invalid url"))
	}
	t0 := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return models.Result{}, apperr.SourceUnavailable("fetch", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return models.Result{}, apperr.SourceUnavailable("fetch", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Result{}, apperr.SourceUnavailable("fetch", fmt.Errorf("%s: status %d", u, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return models.Result{}, apperr.SourceUnavailable("fetch", fmt.Errorf("read %s: %w", u, err))
	}
	if int64(len(body)) > f.maxBodyBytes {
		return models.Result{}, apperr.SourceUnavailable("fetch", fmt.Errorf("%s: body over %d bytes: %w", u, f.maxBodyBytes, models.ErrTooLarge))
	}

	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return models.Result{}, apperr.SourceUnavailable("fetch", fmt.Errorf("extract %s: %w", u, err))
	}
	text := strings.TrimSpace(article.TextContent)
	if f.maxChars > 0 && utf8.RuneCountInString(text) > f.maxChars {
		return models.Result{}, apperr.SourceUnavailable("fetch", fmt.Errorf("%s: text over %d chars: %w", u, f.maxChars, models.ErrTooLarge))
	}

	return models.Result{
		URL:       rawURL,
		Title:     strings.TrimSpace(article.Title),
		Byline:    strings.TrimSpace(article.Byline),
		Text:      text,
		Status:    resp.StatusCode,
		RenderMS:  int(time.Since(t0) / time.Millisecond),
		FetchedAt: time.Now().UTC(),
	}, nil
}
