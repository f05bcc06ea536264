package inmemory

import (
	"context"
	"testing"

	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/models"
)

func TestLoadUnknownSessionIsEmpty(t *testing.T) {
	h, err := NewInMemorySessionStore().Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.SessionID != "missing" || h.Revision != 0 || len(h.Turns) != 0 {
		t.Fatalf("unexpected history: %+v", h)
	}
}

func TestSaveAndReload(t *testing.T) {
	ctx := context.Background()
	s := NewInMemorySessionStore()
	h, _ := s.Load(ctx, "s1")
	h = h.Append(models.UserTurn("q"), models.AssistantTurn("a"))

	rev, err := s.Save(ctx, h)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rev != 1 {
		t.Fatalf("expected revision 1, got %d", rev)
	}
	got, _ := s.Load(ctx, "s1")
	if got.Revision != 1 || len(got.Turns) != 2 || got.Turns[1].Text != "a" {
		t.Fatalf("unexpected reload: %+v", got)
	}
}

func TestSaveRejectsStaleRevision(t *testing.T) {
	ctx := context.Background()
	s := NewInMemorySessionStore()
	first, _ := s.Load(ctx, "s1")
	second, _ := s.Load(ctx, "s1")

	if _, err := s.Save(ctx, first.Append(models.UserTurn("one"))); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_, err := s.Save(ctx, second.Append(models.UserTurn("two")))
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	got, _ := s.Load(ctx, "s1")
	if len(got.Turns) != 1 || got.Turns[0].Text != "one" {
		t.Fatalf("losing write was applied: %+v", got.Turns)
	}
}
