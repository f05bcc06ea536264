package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/internal/conversation"
	"github.com/mohammad-safakhou/findly/internal/retriever"
	"github.com/mohammad-safakhou/findly/tools/web_ingest"
)

var seen = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type stubIndexer struct {
	url string
	err error
}

func (s *stubIndexer) Ingest(_ context.Context, url string) (web_ingest.Result, error) {
	s.url = url
	if s.err != nil {
		return web_ingest.Result{}, s.err
	}
	return web_ingest.Result{URL: url, ContentHash: "h1", Chunks: 3, LastRetrieved: seen}, nil
}

type stubAnswerer struct {
	req retriever.Request
	err error
}

func (s *stubAnswerer) Answer(_ context.Context, req retriever.Request) (retriever.Answer, error) {
	s.req = req
	if s.err != nil {
		return retriever.Answer{}, s.err
	}
	return retriever.Answer{Question: req.Query, URL: req.URL, ContentHash: "h1", LastRetrieved: seen, Text: "42"}, nil
}

type stubConversations struct {
	req conversation.Request
	err error
}

func (s *stubConversations) Ask(_ context.Context, req conversation.Request) (conversation.Reply, error) {
	s.req = req
	if s.err != nil {
		return conversation.Reply{}, s.err
	}
	return conversation.Reply{
		SessionID: "generated",
		Question:  "standalone " + req.Query,
		Answer:    retriever.Answer{URL: req.URL, ContentHash: "h1", LastRetrieved: seen, Text: "chat answer"},
	}, nil
}

type stubHealth struct{ err error }

func (s stubHealth) Ping(context.Context) error { return s.err }

type fixture struct {
	indexer *stubIndexer
	answers *stubAnswerer
	convs   *stubConversations
	e       *echo.Echo
}

func newFixture() *fixture {
	f := &fixture{indexer: &stubIndexer{}, answers: &stubAnswerer{}, convs: &stubConversations{}}
	h := &QAHandler{
		Indexer:       f.indexer,
		Retriever:     f.answers,
		Conversations: f.convs,
		Now:           func() time.Time { return seen.Add(time.Hour) },
	}
	f.e = New(h, Options{Gatherer: prometheus.NewRegistry()})
	return f
}

func (f *fixture) post(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestAskSuccess(t *testing.T) {
	f := newFixture()
	rec := f.post("/api/ask", `{"url":"http://example.com","query":"what?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "42" || resp.ContentHash != "h1" || resp.Question != "what?" || !resp.LastRetrieved.Equal(seen) {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.SessionID != "" {
		t.Fatalf("ask should not return a session id")
	}
	if !f.answers.req.AsOf.Equal(seen.Add(time.Hour)) {
		t.Fatalf("as_of should default to now, got %v", f.answers.req.AsOf)
	}
	if !strings.Contains(rec.Body.String(), `"last_retrieved":"2024-05-01T10:00:00Z"`) {
		t.Fatalf("timestamp not rendered as RFC 3339 UTC: %s", rec.Body.String())
	}
}

func TestAskExplicitAsOf(t *testing.T) {
	f := newFixture()
	rec := f.post("/api/ask", `{"url":"http://example.com","query":"q","as_of":"2024-04-01T00:00:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if want := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC); !f.answers.req.AsOf.Equal(want) {
		t.Fatalf("as_of = %v, want %v", f.answers.req.AsOf, want)
	}
}

func TestAskNotIndexed(t *testing.T) {
	f := newFixture()
	f.answers.err = &retriever.NotIndexedError{URL: "http://example.com"}
	rec := f.post("/api/ask", `{"url":"http://example.com","query":"q"}`)
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status 418 got %d", rec.Code)
	}
	var resp NotIndexedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(resp.Message, "http://example.com") {
		t.Fatalf("message should name the url: %q", resp.Message)
	}
}

func TestErrorKindsMapToStatus(t *testing.T) {
	cases := []struct {
		err  error
		code int
		kind string
	}{
		{apperr.StorageUnavailable("ledger", errors.New("dial tcp: refused")), http.StatusServiceUnavailable, "storage_unavailable"},
		{apperr.Model("rerank", errors.New("429")), http.StatusBadGateway, "model_error"},
		{apperr.Conflict("session.save", errors.New("stale")), http.StatusConflict, "conflict"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		f := newFixture()
		f.answers.err = tc.err
		rec := f.post("/api/ask", `{"url":"http://example.com","query":"q"}`)
		if rec.Code != tc.code {
			t.Fatalf("%v: expected status %d got %d", tc.err, tc.code, rec.Code)
		}
		var resp ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Error != tc.kind {
			t.Fatalf("error = %q, want %q", resp.Error, tc.kind)
		}
		if strings.Contains(resp.Message, "refused") || strings.Contains(resp.Message, "boom") {
			t.Fatalf("internal detail leaked: %q", resp.Message)
		}
	}
}

func TestInvalidInput(t *testing.T) {
	f := newFixture()
	for _, body := range []string{
		`{"query":"q"}`,
		`{"url":"ftp://example.com","query":"q"}`,
		`{"url":"http://example.com","query":"   "}`,
		`{not json`,
	} {
		rec := f.post("/api/ask", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400 got %d", body, rec.Code)
		}
	}
}

func TestChatSuccess(t *testing.T) {
	f := newFixture()
	rec := f.post("/api/chat", `{"url":"http://example.com","query":"and?","session_id":"s1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if f.convs.req.SessionID != "s1" || f.convs.req.Query != "and?" {
		t.Fatalf("unexpected conversation request: %+v", f.convs.req)
	}
	if resp.SessionID != "generated" || resp.Answer != "chat answer" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Question != "and?" {
		t.Fatalf("question must echo the raw query, got %q", resp.Question)
	}
	if resp.StandaloneQuestion != "standalone and?" {
		t.Fatalf("unexpected standalone question %q", resp.StandaloneQuestion)
	}
}

func TestChatNotIndexed(t *testing.T) {
	f := newFixture()
	f.convs.err = &retriever.NotIndexedError{URL: "http://example.com"}
	rec := f.post("/api/chat", `{"url":"http://example.com","query":"q"}`)
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status 418 got %d", rec.Code)
	}
}

func TestIndexURL(t *testing.T) {
	f := newFixture()
	rec := f.post("/api/index-url", `{"url":"https://example.com/page"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp web_ingest.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if f.indexer.url != "https://example.com/page" || resp.Chunks != 3 || resp.ContentHash != "h1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestIndexURLSourceUnavailable(t *testing.T) {
	f := newFixture()
	f.indexer.err = apperr.SourceUnavailable("fetch", errors.New("404"))
	rec := f.post("/api/index-url", `{"url":"https://example.com/page"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502 got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := &QAHandler{}
	for _, tc := range []struct {
		health Health
		code   int
	}{
		{stubHealth{}, http.StatusOK},
		{stubHealth{err: errors.New("down")}, http.StatusServiceUnavailable},
	} {
		e := New(h, Options{Gatherer: prometheus.NewRegistry(), Health: tc.health})
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != tc.code {
			t.Fatalf("expected status %d got %d", tc.code, rec.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "findly_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	e := New(&QAHandler{}, Options{Gatherer: reg})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "findly_test_total 1") {
		t.Fatalf("unexpected metrics output (%d): %s", rec.Code, rec.Body.String())
	}
}
