// Package retriever answers questions about a page using only the chunks of
// the page version that was current at the requested time.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/internal/docstore"
	"github.com/mohammad-safakhou/findly/internal/ledger"
	"github.com/mohammad-safakhou/findly/internal/metrics"
	"github.com/mohammad-safakhou/findly/models"
	"github.com/mohammad-safakhou/findly/provider"
)

const (
	DefaultCandidateCount = 20
	DefaultTopK           = 5
)

var tracer = otel.Tracer("findly/retriever")

// ErrNotIndexed matches every *NotIndexedError.
var ErrNotIndexed = errors.New("url not indexed")

// NotIndexedError means no version of URL existed at the requested time. It
// is an expected outcome and callers should ask for the URL to be indexed.
type NotIndexedError struct {
	URL string
}

func (e *NotIndexedError) Error() string {
	return fmt.Sprintf("Url %s was not yet indexed in the vector store. Index the url first before querying. "+
		"(Use the /index-url endpoint and wait a little bit before querying again.)", e.URL)
}

func (e *NotIndexedError) Is(target error) bool { return target == ErrNotIndexed }

// Request is one question about URL. Chat selects the conversational prompt,
// which carries History between the context and the question.
type Request struct {
	URL     string
	Query   string
	AsOf    time.Time
	Chat    bool
	History []models.Turn
}

// Answer is the model output plus the version it was grounded on.
type Answer struct {
	Question      string
	URL           string
	ContentHash   string
	LastRetrieved time.Time
	Text          string
	Chunks        []models.ScoredChunk
}

type Options struct {
	CandidateCount int
	TopK           int
	Logger         *slog.Logger
}

type Retriever struct {
	ledger   ledger.Ledger
	store    docstore.Store
	embedder provider.Embedder
	reranker provider.Reranker
	llm      provider.LLM

	candidateCount int
	topK           int
	logger         *slog.Logger
}

func New(l ledger.Ledger, s docstore.Store, e provider.Embedder, r provider.Reranker, llm provider.LLM, opts Options) *Retriever {
	rt := &Retriever{
		ledger:         l,
		store:          s,
		embedder:       e,
		reranker:       r,
		llm:            llm,
		candidateCount: opts.CandidateCount,
		topK:           opts.TopK,
		logger:         opts.Logger,
	}
	if rt.candidateCount <= 0 {
		rt.candidateCount = DefaultCandidateCount
	}
	if rt.topK <= 0 {
		rt.topK = DefaultTopK
	}
	if rt.topK > rt.candidateCount {
		rt.topK = rt.candidateCount
	}
	if rt.logger == nil {
		rt.logger = slog.Default()
	}
	return rt
}

// Answer resolves the page version current at req.AsOf and answers from its
// chunks only. It returns a *NotIndexedError when there is no such version.
// An empty candidate set is not an error; the model is asked anyway.
func (r *Retriever) Answer(ctx context.Context, req Request) (ans Answer, err error) {
	ctx, span := tracer.Start(ctx, "retrieve")
	defer func() {
		outcome := metrics.Outcome(err)
		if errors.Is(err, ErrNotIndexed) {
			outcome = metrics.OutcomeNotIndexed
		} else if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.QueryTotal.WithLabelValues(modeOf(req), outcome).Inc()
		span.End()
	}()
	span.SetAttributes(attribute.String("url", req.URL))

	version, found, err := r.ledger.LatestAsOf(ctx, req.URL, req.AsOf)
	if err != nil {
		return Answer{}, apperr.StorageUnavailable("retrieve.resolve", err)
	}
	if !found {
		return Answer{}, &NotIndexedError{URL: req.URL}
	}
	span.SetAttributes(attribute.String("content_hash", version.ContentHash))

	chunks, err := r.gather(ctx, req.Query, version)
	if err != nil {
		return Answer{}, err
	}

	start := time.Now()
	text, err := r.llm.Complete(ctx, buildMessages(req.Query, chunks, req.Chat, req.History))
	metrics.StageSeconds.WithLabelValues("generate").Observe(time.Since(start).Seconds())
	if err != nil {
		return Answer{}, apperr.Model("retrieve.generate", err)
	}

	r.logger.Debug("answered", "url", req.URL, "content_hash", version.ContentHash, "chunks", len(chunks))
	return Answer{
		Question:      req.Query,
		URL:           req.URL,
		ContentHash:   version.ContentHash,
		LastRetrieved: version.LastRetrieved,
		Text:          text,
		Chunks:        chunks,
	}, nil
}

func modeOf(req Request) string {
	if req.Chat {
		return "chat"
	}
	return "ask"
}

// gather runs the filtered search and the rerank pass.
func (r *Retriever) gather(ctx context.Context, query string, v models.ContentVersion) ([]models.ScoredChunk, error) {
	start := time.Now()
	defer func() { metrics.StageSeconds.WithLabelValues("retrieve").Observe(time.Since(start).Seconds()) }()

	vec, err := provider.EmbedQuery(ctx, r.embedder, query)
	if err != nil {
		return nil, apperr.Model("retrieve.embed", err)
	}
	candidates, err := r.store.Search(ctx, vec, docstore.Filter{URL: v.URL, ContentHash: v.ContentHash}, r.candidateCount)
	if err != nil {
		return nil, apperr.StorageUnavailable("retrieve.search", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Text
	}
	ranked, err := r.reranker.Rerank(ctx, query, docs, r.topK)
	if err != nil {
		return nil, apperr.Model("retrieve.rerank", err)
	}
	out := make([]models.ScoredChunk, 0, len(ranked))
	for i, rr := range ranked {
		if rr.Index < 0 || rr.Index >= len(candidates) {
			return nil, apperr.Model("retrieve.rerank", fmt.Errorf("rerank index %d out of range", rr.Index))
		}
		c := candidates[rr.Index]
		c.Score = rr.Score
		c.Rank = i + 1
		out = append(out, c)
	}
	return out, nil
}
