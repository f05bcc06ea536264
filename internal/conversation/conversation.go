// Package conversation runs multi-turn question answering over one page,
// keeping each session's history in a session.Store.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/internal/metrics"
	"github.com/mohammad-safakhou/findly/internal/retriever"
	"github.com/mohammad-safakhou/findly/models"
	"github.com/mohammad-safakhou/findly/provider"
	"github.com/mohammad-safakhou/findly/session"
)

const contextualizeSystemPrompt = "Given a chat history and the latest user question " +
	"which might reference context in the chat history, formulate a standalone question " +
	"which can be understood without the chat history. Do NOT answer the question, " +
	"just reformulate it if needed and otherwise return it as is."

var tracer = otel.Tracer("findly/conversation")

// Answerer is the part of the retriever the manager needs.
type Answerer interface {
	Answer(ctx context.Context, req retriever.Request) (retriever.Answer, error)
}

type Request struct {
	SessionID string
	URL       string
	Query     string
	AsOf      time.Time
}

// Reply is one assistant turn. Question is the standalone form of the query
// that was used for retrieval.
type Reply struct {
	SessionID string
	Question  string
	Answer    retriever.Answer
}

type Manager struct {
	sessions  session.Store
	retriever Answerer
	llm       provider.LLM
	logger    *slog.Logger
}

func NewManager(sessions session.Store, r Answerer, llm provider.LLM, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{sessions: sessions, retriever: r, llm: llm, logger: logger}
}

// Ask answers req.Query in the context of the session's earlier turns and
// appends the exchange to the session. A blank SessionID starts a new
// session. When the page is not indexed nothing is saved. A concurrent write
// to the same session makes Save fail with apperr.Conflict.
func (m *Manager) Ask(ctx context.Context, req Request) (Reply, error) {
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	ctx, span := tracer.Start(ctx, "conversation.ask")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", req.SessionID), attribute.String("url", req.URL))

	h, err := m.sessions.Load(ctx, req.SessionID)
	if err != nil {
		return Reply{}, err
	}

	question, err := m.contextualize(ctx, h.Turns, req.Query)
	if err != nil {
		return Reply{}, err
	}

	ans, err := m.retriever.Answer(ctx, retriever.Request{
		URL:     req.URL,
		Query:   question,
		AsOf:    req.AsOf,
		Chat:    true,
		History: h.Turns,
	})
	if err != nil {
		return Reply{}, err
	}

	h.SessionID = req.SessionID
	if _, err := m.sessions.Save(ctx, h.Append(models.UserTurn(req.Query), models.AssistantTurn(ans.Text))); err != nil {
		if errors.Is(err, session.ErrStaleRevision) {
			m.logger.Warn("session changed during ask", "session_id", req.SessionID)
		}
		return Reply{}, err
	}
	return Reply{SessionID: req.SessionID, Question: question, Answer: ans}, nil
}

// contextualize rewrites query into a standalone question. With no history
// the query is used unchanged.
func (m *Manager) contextualize(ctx context.Context, history []models.Turn, query string) (string, error) {
	if len(history) == 0 {
		return query, nil
	}
	start := time.Now()
	defer func() { metrics.StageSeconds.WithLabelValues("contextualize").Observe(time.Since(start).Seconds()) }()

	msgs := make([]models.ChatMessage, 0, len(history)+2)
	msgs = append(msgs, models.ChatMessage{Role: "system", Content: contextualizeSystemPrompt})
	msgs = append(msgs, retriever.HistoryMessages(history)...)
	msgs = append(msgs, models.ChatMessage{Role: "user", Content: query})
	out, err := m.llm.Complete(ctx, msgs)
	if err != nil {
		return "", apperr.Model("conversation.contextualize", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return query, nil
	}
	return out, nil
}
