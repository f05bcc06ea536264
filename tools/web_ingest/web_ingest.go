package web_ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/internal/contenthash"
	"github.com/mohammad-safakhou/findly/internal/docstore"
	"github.com/mohammad-safakhou/findly/internal/ledger"
	"github.com/mohammad-safakhou/findly/internal/metrics"
	"github.com/mohammad-safakhou/findly/models"
	"github.com/mohammad-safakhou/findly/provider"
	"github.com/mohammad-safakhou/findly/tools/web_fetch"
	fetchmodels "github.com/mohammad-safakhou/findly/tools/web_fetch/models"
)

const (
	DefaultEmbeddingBatchSize   = 64
	DefaultEmbeddingConcurrency = 4
)

var ErrEmptyContent = errors.New("page has no extractable text")

var tracer = otel.Tracer("findly/ingest")

// Result reports what one ingestion call did.
type Result struct {
	URL           string    `json:"url"`
	ContentHash   string    `json:"content_hash"`
	Chunks        int       `json:"chunks"`
	Skipped       bool      `json:"skipped"`
	LastRetrieved time.Time `json:"last_retrieved"`
}

type Options struct {
	Splitter             Splitter
	EmbeddingBatchSize   int
	EmbeddingConcurrency int
	Now                  func() time.Time
	Logger               *slog.Logger
}

// Pipeline fetches a page, stores chunks for content it has not seen before
// and refreshes the page's entry in the version ledger.
type Pipeline struct {
	fetcher  web_fetch.WebFetcher
	embedder provider.Embedder
	store    docstore.Store
	ledger   ledger.Ledger

	splitter    Splitter
	batchSize   int
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
}

func NewPipeline(fetcher web_fetch.WebFetcher, embedder provider.Embedder, store docstore.Store, l ledger.Ledger, opts Options) *Pipeline {
	p := &Pipeline{
		fetcher:     fetcher,
		embedder:    embedder,
		store:       store,
		ledger:      l,
		splitter:    opts.Splitter,
		batchSize:   opts.EmbeddingBatchSize,
		concurrency: opts.EmbeddingConcurrency,
		now:         opts.Now,
		logger:      opts.Logger,
	}
	if p.splitter.Size <= 0 {
		p.splitter = Splitter{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap}
	}
	if p.batchSize <= 0 {
		p.batchSize = DefaultEmbeddingBatchSize
	}
	if p.concurrency <= 0 {
		p.concurrency = DefaultEmbeddingConcurrency
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Ingest runs the pipeline for url. Chunks are written before the ledger is
// touched, so a version is never visible in the ledger without its chunks.
// The ledger is refreshed exactly once per successful call, whether or not
// the content was new.
func (p *Pipeline) Ingest(ctx context.Context, url string) (res Result, err error) {
	ctx, span := tracer.Start(ctx, "ingest")
	defer func() {
		outcome := metrics.Outcome(err)
		if err == nil && res.Skipped {
			outcome = metrics.OutcomeSkipped
		}
		metrics.IngestTotal.WithLabelValues(outcome).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("url", url))

	page, err := p.fetch(ctx, url)
	if err != nil {
		return Result{}, err
	}
	text := strings.TrimSpace(page.Text)
	if text == "" {
		return Result{}, apperr.SourceUnavailable("ingest.extract", ErrEmptyContent)
	}

	hash := contenthash.Sum(text)
	span.SetAttributes(attribute.String("content_hash", hash))
	res = Result{URL: url, ContentHash: hash}

	known, err := p.ledger.Exists(ctx, url, hash)
	if err != nil {
		return Result{}, err
	}
	if known {
		res.Skipped = true
	} else {
		n, err := p.index(ctx, url, hash, text)
		if err != nil {
			return Result{}, err
		}
		res.Chunks = n
	}

	seen := p.now().UTC()
	if err := p.ledger.RecordSeen(ctx, url, hash, seen); err != nil {
		return Result{}, err
	}
	res.LastRetrieved = seen
	p.logger.Info("page ingested", "url", url, "content_hash", hash, "chunks", res.Chunks, "skipped", res.Skipped)
	return res, nil
}

func (p *Pipeline) fetch(ctx context.Context, url string) (fetchmodels.Result, error) {
	start := time.Now()
	defer func() { metrics.StageSeconds.WithLabelValues("fetch").Observe(time.Since(start).Seconds()) }()
	page, err := p.fetcher.Exec(ctx, url)
	if err != nil {
		return fetchmodels.Result{}, apperr.SourceUnavailable("ingest.fetch", err)
	}
	return page, nil
}

func (p *Pipeline) index(ctx context.Context, url, hash, text string) (int, error) {
	parts := p.splitter.Split(text)
	if len(parts) == 0 {
		return 0, apperr.SourceUnavailable("ingest.split", ErrEmptyContent)
	}
	vecs, err := p.embedAll(ctx, parts)
	if err != nil {
		return 0, err
	}
	chunks := make([]models.DocumentChunk, len(parts))
	for i, part := range parts {
		chunks[i] = models.DocumentChunk{
			URL:         url,
			ContentHash: hash,
			Ordinal:     i,
			Text:        part,
			Embedding:   vecs[i],
		}
	}

	start := time.Now()
	err = p.store.Add(ctx, chunks)
	metrics.StageSeconds.WithLabelValues("store").Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, apperr.StorageUnavailable("ingest.store", err)
	}
	metrics.IngestedChunks.Add(float64(len(chunks)))
	return len(chunks), nil
}

// embedAll embeds parts in fixed-size batches, several batches at a time.
// Output order matches parts regardless of completion order.
func (p *Pipeline) embedAll(ctx context.Context, parts []string) ([][]float32, error) {
	start := time.Now()
	defer func() { metrics.StageSeconds.WithLabelValues("embed").Observe(time.Since(start).Seconds()) }()

	vecs := make([][]float32, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for lo := 0; lo < len(parts); lo += p.batchSize {
		lo, hi := lo, min(lo+p.batchSize, len(parts))
		g.Go(func() error {
			out, err := p.embedder.Embed(gctx, parts[lo:hi])
			if err != nil {
				return apperr.Model("ingest.embed", err)
			}
			if len(out) != hi-lo {
				return apperr.Model("ingest.embed", fmt.Errorf("expected %d vectors, got %d", hi-lo, len(out)))
			}
			copy(vecs[lo:hi], out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vecs, nil
}
