package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("ingest: %w", StorageUnavailable("ledger.record_seen", base))

	if !Is(err, KindStorageUnavailable) {
		t.Fatalf("expected storage kind, got %v", err)
	}
	if Is(err, KindModel) {
		t.Fatalf("storage error reported as model error")
	}
	if !errors.Is(err, base) {
		t.Fatalf("underlying error lost")
	}
}

func TestWrapDoesNotDoubleClassify(t *testing.T) {
	inner := SourceUnavailable("fetch", errors.New("timeout"))
	outer := SourceUnavailable("ingest", inner)
	if outer != inner {
		t.Fatalf("expected the same error back, got %v", outer)
	}
}

func TestErrorString(t *testing.T) {
	err := Model("rerank", errors.New("status 500"))
	if got, want := err.Error(), "model_error: rerank: status 500"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatalf("plain error should not carry a kind")
	}
}
