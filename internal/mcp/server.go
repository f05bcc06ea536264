// Package mcp exposes indexing and page questions as MCP tools, so agents can
// call them the same way they call the HTTP API.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/internal/conversation"
	"github.com/mohammad-safakhou/findly/internal/retriever"
	"github.com/mohammad-safakhou/findly/tools/web_ingest"
)

const (
	ToolIndex = "page.index"
	ToolAsk   = "page.ask"
	ToolChat  = "page.chat"
)

const (
	indexSchema = `{
  "type": "object",
  "properties": {
    "url": {"type": "string", "format": "uri", "description": "Page to fetch and index"}
  },
  "required": ["url"]
}`
	askSchema = `{
  "type": "object",
  "properties": {
    "url": {"type": "string", "format": "uri", "description": "Indexed page to answer from"},
    "query": {"type": "string", "description": "Question about the page"},
    "as_of": {"type": "string", "format": "date-time", "description": "Answer from the version current at this time (default now)"}
  },
  "required": ["url", "query"]
}`
	chatSchema = `{
  "type": "object",
  "properties": {
    "url": {"type": "string", "format": "uri", "description": "Indexed page to answer from"},
    "query": {"type": "string", "description": "Question, possibly referring to earlier turns"},
    "session_id": {"type": "string", "description": "Conversation to continue; a new one is started when empty"},
    "as_of": {"type": "string", "format": "date-time", "description": "Answer from the version current at this time (default now)"}
  },
  "required": ["url", "query"]
}`
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

// Server holds the shared components. It keeps no state of its own.
type Server struct {
	Indexer       Indexer
	Retriever     Answerer
	Conversations Conversations
	CallTimeout   time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

// AnswerResult is the text payload of page.ask and page.chat. Question is the
// caller's query; StandaloneQuestion is the rewrite a chat turn retrieved with.
type AnswerResult struct {
	Question           string    `json:"question"`
	StandaloneQuestion string    `json:"standalone_question,omitempty"`
	URL                string    `json:"url"`
	ContentHash        string    `json:"content_hash"`
	LastRetrieved      time.Time `json:"last_retrieved"`
	SessionID          string    `json:"session_id,omitempty"`
	Answer             string    `json:"answer"`
}

// ToolError is the text payload of a failed tool call.
type ToolError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var errInvalidArgs = errors.New("invalid arguments")

// NewMCPServer registers the page tools on a fresh MCP server.
func (srv *Server) NewMCPServer(name, version string) *server.MCPServer {
	s := server.NewMCPServer(name, version,
		server.WithToolCapabilities(false),
		server.WithInstructions("Index web pages and answer questions grounded in the page version current at a given time."),
	)
	s.AddTool(
		mcpgo.NewToolWithRawSchema(ToolIndex, "Fetch a page and index its current content. Unchanged content is not re-embedded.", json.RawMessage(indexSchema)),
		srv.handle(ToolIndex, srv.index),
	)
	s.AddTool(
		mcpgo.NewToolWithRawSchema(ToolAsk, "Answer a question from the page version that was current at as_of.", json.RawMessage(askSchema)),
		srv.handle(ToolAsk, srv.ask),
	)
	s.AddTool(
		mcpgo.NewToolWithRawSchema(ToolChat, "Answer a follow-up question in a session, using earlier turns for context.", json.RawMessage(chatSchema)),
		srv.handle(ToolChat, srv.chat),
	)
	return s
}

// Serve runs the tools over newline-delimited JSON-RPC on in and out until
// in is exhausted or ctx ends.
func (srv *Server) Serve(ctx context.Context, version string, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(srv.NewMCPServer("findly", version)).Listen(ctx, in, out)
}

type toolFunc func(ctx context.Context, req mcpgo.CallToolRequest) (any, error)

// handle applies the call timeout, encodes the payload and turns failures
// into tool errors. Internal details stay in the log.
func (srv *Server) handle(name string, fn toolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		timeout := srv.CallTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		out, err := fn(ctx, req)
		if err != nil {
			srv.logger().Warn("tool call failed", "tool", name, "error", err)
			return toolError(err), nil
		}
		b, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("encode %s result: %w", name, err)
		}
		return mcpgo.NewToolResultText(string(b)), nil
	}
}

func (srv *Server) index(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	url, err := req.RequireString("url")
	if err != nil || url == "" {
		return nil, fmt.Errorf("%w: url is required", errInvalidArgs)
	}
	return srv.Indexer.Ingest(ctx, url)
}

func (srv *Server) ask(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	url, query, asOf, err := srv.queryArgs(req)
	if err != nil {
		return nil, err
	}
	ans, err := srv.Retriever.Answer(ctx, retriever.Request{URL: url, Query: query, AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return AnswerResult{
		Question:      query,
		URL:           ans.URL,
		ContentHash:   ans.ContentHash,
		LastRetrieved: ans.LastRetrieved.UTC(),
		Answer:        ans.Text,
	}, nil
}

func (srv *Server) chat(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	url, query, asOf, err := srv.queryArgs(req)
	if err != nil {
		return nil, err
	}
	reply, err := srv.Conversations.Ask(ctx, conversation.Request{
		SessionID: req.GetString("session_id", ""),
		URL:       url,
		Query:     query,
		AsOf:      asOf,
	})
	if err != nil {
		return nil, err
	}
	return AnswerResult{
		Question:           query,
		StandaloneQuestion: reply.Question,
		URL:                reply.Answer.URL,
		ContentHash:        reply.Answer.ContentHash,
		LastRetrieved:      reply.Answer.LastRetrieved.UTC(),
		SessionID:          reply.SessionID,
		Answer:             reply.Answer.Text,
	}, nil
}

func (srv *Server) queryArgs(req mcpgo.CallToolRequest) (string, string, time.Time, error) {
	url, query := req.GetString("url", ""), req.GetString("query", "")
	if url == "" || query == "" {
		return "", "", time.Time{}, fmt.Errorf("%w: url and query are required", errInvalidArgs)
	}
	asOf := srv.now()
	if raw := req.GetString("as_of", ""); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return "", "", time.Time{}, fmt.Errorf("%w: as_of: %v", errInvalidArgs, err)
		}
		asOf = t.UTC()
	}
	return url, query, asOf, nil
}

func toolError(err error) *mcpgo.CallToolResult {
	te := ToolError{Error: "internal", Message: "tool failed"}
	var nie *retriever.NotIndexedError
	switch {
	case errors.As(err, &nie):
		te = ToolError{Error: "not_indexed", Message: nie.Error()}
	case errors.Is(err, errInvalidArgs):
		te = ToolError{Error: "invalid_request", Message: err.Error()}
	default:
		if kind, ok := apperr.KindOf(err); ok {
			te = ToolError{Error: string(kind), Message: string(kind)}
		}
	}
	b, _ := json.Marshal(te)
	return mcpgo.NewToolResultError(string(b))
}

func (srv *Server) now() time.Time {
	if srv.Now != nil {
		return srv.Now().UTC()
	}
	return time.Now().UTC()
}

func (srv *Server) logger() *slog.Logger {
	if srv.Logger != nil {
		return srv.Logger
	}
	return slog.Default()
}
