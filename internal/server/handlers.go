package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/findly/internal/conversation"
	"github.com/mohammad-safakhou/findly/internal/retriever"
	"github.com/mohammad-safakhou/findly/tools/web_ingest"
)

type Indexer interface {
	Ingest(ctx context.Context, url string) (web_ingest.Result, error)
}

type Answerer interface {
	Answer(ctx context.Context, req retriever.Request) (retriever.Answer, error)
}

type Conversations interface {
	Ask(ctx context.Context, req conversation.Request) (conversation.Reply, error)
}

type IndexRequest struct {
	URL string `json:"url"`
}

// QueryRequest is the body of /ask and /chat. AsOf defaults to the time the
// request is received.
type QueryRequest struct {
	URL       string     `json:"url"`
	Query     string     `json:"query"`
	SessionID string     `json:"session_id,omitempty"`
	AsOf      *time.Time `json:"as_of,omitempty"`
}

// QueryResponse echoes the caller's query as Question. Chat replies also carry
// the standalone rewrite that was used for retrieval.
type QueryResponse struct {
	Question           string    `json:"question"`
	StandaloneQuestion string    `json:"standalone_question,omitempty"`
	URL                string    `json:"url"`
	LastRetrieved      time.Time `json:"last_retrieved"`
	ContentHash        string    `json:"content_hash"`
	SessionID          string    `json:"session_id,omitempty"`
	Answer             string    `json:"answer"`
}

// QAHandler serves indexing and question answering.
type QAHandler struct {
	Indexer       Indexer
	Retriever     Answerer
	Conversations Conversations
	Now           func() time.Time
}

func (h *QAHandler) Register(g *echo.Group) {
	g.POST("/index-url", h.index)
	g.POST("/ask", h.ask)
	g.POST("/chat", h.chat)
}

func (h *QAHandler) index(c echo.Context) error {
	var req IndexRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json body")
	}
	if err := validateURL(req.URL); err != nil {
		return err
	}
	res, err := h.Indexer.Ingest(c.Request().Context(), req.URL)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *QAHandler) ask(c echo.Context) error {
	req, err := h.bindQuery(c)
	if err != nil {
		return err
	}
	ans, err := h.Retriever.Answer(c.Request().Context(), retriever.Request{
		URL:   req.URL,
		Query: req.Query,
		AsOf:  h.asOf(req),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, QueryResponse{
		Question:      req.Query,
		URL:           ans.URL,
		LastRetrieved: ans.LastRetrieved.UTC(),
		ContentHash:   ans.ContentHash,
		Answer:        ans.Text,
	})
}

func (h *QAHandler) chat(c echo.Context) error {
	req, err := h.bindQuery(c)
	if err != nil {
		return err
	}
	reply, err := h.Conversations.Ask(c.Request().Context(), conversation.Request{
		SessionID: req.SessionID,
		URL:       req.URL,
		Query:     req.Query,
		AsOf:      h.asOf(req),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, QueryResponse{
		Question:           req.Query,
		StandaloneQuestion: reply.Question,
		URL:                reply.Answer.URL,
		LastRetrieved:      reply.Answer.LastRetrieved.UTC(),
		ContentHash:        reply.Answer.ContentHash,
		SessionID:          reply.SessionID,
		Answer:             reply.Answer.Text,
	})
}

func (h *QAHandler) bindQuery(c echo.Context) (QueryRequest, error) {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return req, echo.NewHTTPError(http.StatusBadRequest, "invalid json body")
	}
	if err := validateURL(req.URL); err != nil {
		return req, err
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return req, echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	return req, nil
}

func (h *QAHandler) asOf(req QueryRequest) time.Time {
	if req.AsOf != nil {
		return req.AsOf.UTC()
	}
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func validateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url must be an absolute http(s) url")
	}
	return nil
}
