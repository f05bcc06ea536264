package models

import (
	"errors"
	"time"
)

// ErrTooLarge is returned when a page is bigger than the configured limit.
// Pages are never cut short, so the content hash always covers the whole text.
var ErrTooLarge = errors.New("page exceeds the configured size limit")

// Result is the extracted main text of a page.
type Result struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Byline    string    `json:"byline"`
	Text      string    `json:"text"`
	Status    int       `json:"status"`
	RenderMS  int       `json:"render_ms"`
	FetchedAt time.Time `json:"fetched_at"`
}
