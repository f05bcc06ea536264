package models

import (
	"fmt"
	"time"
)

// ContentVersion is one observed snapshot of a URL's content.
type ContentVersion struct {
	URL           string    `json:"url"`
	ContentHash   string    `json:"content_hash"`
	LastRetrieved time.Time `json:"last_retrieved"`
}

// DocumentChunk is a unit of retrievable text. URL and ContentHash are copied
// from the ContentVersion the chunk was produced from and never change.
type DocumentChunk struct {
	URL         string    `json:"url"`
	ContentHash string    `json:"content_hash"`
	Ordinal     int       `json:"ordinal"`
	Text        string    `json:"text"`
	Embedding   []float32 `json:"-"`
}

// Key is the natural key of a chunk inside the document store.
func (c DocumentChunk) Key() string {
	return fmt.Sprintf("%s|%s|%06d", c.URL, c.ContentHash, c.Ordinal)
}

// ScoredChunk is a search or rerank hit.
type ScoredChunk struct {
	DocumentChunk
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a role that may appear in a stored history.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is a single message in a conversation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

func UserTurn(text string) Turn      { return Turn{Role: RoleUser, Text: text} }
func AssistantTurn(text string) Turn { return Turn{Role: RoleAssistant, Text: text} }

// ChatMessage is one message sent to a chat completion model. Role is
// "system", "user" or "assistant".
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RerankResult points back into the document list given to a reranker.
type RerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"relevance_score"`
}
