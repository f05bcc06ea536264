package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/internal/contenthash"
	"github.com/mohammad-safakhou/findly/tools/web_fetch/models"
)

const page = `<html><head><title>Sourdough basics</title></head><body>
<nav>home | about</nav>
<article><h1>Sourdough basics</h1>
<p>Feed the starter twice a day with equal weights of flour and water. Keep it somewhere warm.</p>
<p>Bake the loaf at 250 degrees for twenty minutes with the lid on, then another twenty without it.</p>
<p>Let the bread cool for at least an hour before cutting so the crumb can set properly.</p>
</article></body></html>`

func TestExecExtractsArticleText(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	f := New(5*time.Second, 0, "findly-test")
	res, err := f.Exec(context.Background(), srv.URL+"/bread")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if !strings.Contains(res.Text, "250 degrees") {
		t.Fatalf("article text missing: %q", res.Text)
	}
	if res.Status != http.StatusOK || res.URL != srv.URL+"/bread" {
		t.Fatalf("unexpected result metadata: %+v", res)
	}
	if gotUA != "findly-test" {
		t.Fatalf("user agent not sent: %q", gotUA)
	}
}

// longPage renders an article of roughly 250,000 characters whose last
// paragraph is tail.
func longPage(tail string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>Release notes</title></head><body><article><h1>Release notes</h1>")
	for i := 0; i < 2500; i++ {
		fmt.Fprintf(&b, "<p>Entry %04d: the scheduler now keeps queued jobs in order after a restart of the worker.</p>", i)
	}
	fmt.Fprintf(&b, "<p>%s</p></article></body></html>", tail)
	return b.String()
}

func TestExecKeepsLongTextWhole(t *testing.T) {
	tail := "The final price is forty dollars."
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(longPage(tail)))
	}))
	defer srv.Close()

	res, err := New(5*time.Second, 0, "ua").Exec(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if len([]rune(res.Text)) <= 200000 {
		t.Fatalf("expected the whole article, got %d chars", len([]rune(res.Text)))
	}
	if !strings.Contains(res.Text, tail) {
		t.Fatalf("tail of the page was dropped")
	}
}

func TestPagesDifferingPastLongPrefixHashDifferently(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tail := "The final price is forty dollars."
		if r.URL.Path == "/after" {
			tail = "The final price is fifty dollars."
		}
		_, _ = w.Write([]byte(longPage(tail)))
	}))
	defer srv.Close()

	f := New(5*time.Second, 0, "ua")
	before, err := f.Exec(context.Background(), srv.URL+"/before")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	after, err := f.Exec(context.Background(), srv.URL+"/after")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if contenthash.Sum(before.Text) == contenthash.Sum(after.Text) {
		t.Fatalf("a change at the end of a long page must change the hash")
	}
}

func TestExecRejectsTextOverMaxChars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	_, err := New(5*time.Second, 10, "ua").Exec(context.Background(), srv.URL)
	if !apperr.Is(err, apperr.KindSourceUnavailable) || !errors.Is(err, models.ErrTooLarge) {
		t.Fatalf("expected too large source error, got %v", err)
	}
}

func TestExecRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	f := New(5*time.Second, 0, "ua")
	f.maxBodyBytes = 64
	_, err := f.Exec(context.Background(), srv.URL)
	if !apperr.Is(err, apperr.KindSourceUnavailable) || !errors.Is(err, models.ErrTooLarge) {
		t.Fatalf("expected too large source error, got %v", err)
	}
}

func TestExecFailuresAreSourceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(time.Second, 0, "ua")
	for _, target := range []string{srv.URL, "ftp://example.com/x", "not a url"} {
		_, err := f.Exec(context.Background(), target)
		if !apperr.Is(err, apperr.KindSourceUnavailable) {
			t.Fatalf("Exec(%q): expected source_unavailable, got %v", target, err)
		}
	}
}
