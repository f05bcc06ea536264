package chromedp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/tools/web_fetch/models"
)

// Fetch renders the page in headless Chrome before extraction, for pages
// whose text only exists after scripts run.
type Fetch struct {
	Timeout time.Duration
	// MaxChars rejects pages with longer text. Zero means no limit.
	MaxChars  int
	UserAgent string
}

func (f Fetch) Exec(ctx context.Context, rawURL string) (models.Result, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return models.Result{}, apperr.SourceUnavailable("fetch", errors.New("invalid url"))
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	t0 := time.Now()

	html, err := f.fetchHTML(ctx, u.String())
	if err != nil {
		return models.Result{}, apperr.SourceUnavailable("fetch", fmt.Errorf("render %s: %w", u, err))
	}

	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return models.Result{}, apperr.SourceUnavailable("fetch", fmt.Errorf("extract %s: %w", u, err))
	}
	text := strings.TrimSpace(article.TextContent)
	if f.MaxChars > 0 && utf8.RuneCountInString(text) > f.MaxChars {
		return models.Result{}, apperr.SourceUnavailable("fetch", fmt.Errorf("%s: text over %d chars: %w", u, f.MaxChars, models.ErrTooLarge))
	}

	return models.Result{
		URL:       rawURL,
		Title:     strings.TrimSpace(article.Title),
		Byline:    strings.TrimSpace(article.Byline),
		Text:      text,
		Status:    200,
		RenderMS:  int(time.Since(t0) / time.Millisecond),
		FetchedAt: time.Now().UTC(),
	}, nil
}

func (f Fetch) fetchHTML(ctx context.Context, target string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(f.UserAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}
