package session

import (
	"strings"
	"testing"

	"github.com/mohammad-safakhou/findly/models"
)

func TestCodecPreservesOrder(t *testing.T) {
	turns := []models.Turn{
		models.UserTurn("what is on the page?"),
		models.AssistantTurn("a recipe"),
		models.UserTurn("how long does it bake?"),
	}
	data, err := Encode(turns)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), `"version":1`) {
		t.Fatalf("version not written: %s", data)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != len(turns) {
		t.Fatalf("expected %d turns, got %d", len(turns), len(got))
	}
	for i := range turns {
		if got[i] != turns[i] {
			t.Fatalf("turn %d: got %+v want %+v", i, got[i], turns[i])
		}
	}
}

func TestDecodeRejectsUnknownVersionAndRole(t *testing.T) {
	if _, err := Decode([]byte(`{"version":2,"turns":[]}`)); err == nil {
		t.Fatalf("expected version error")
	}
	if _, err := Decode([]byte(`{"version":1,"turns":[{"role":"system","text":"x"}]}`)); err == nil {
		t.Fatalf("expected role error")
	}
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEncodeEmptyHistory(t *testing.T) {
	data, err := Encode(nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(data) != `{"version":1,"turns":[]}` {
		t.Fatalf("unexpected encoding: %s", data)
	}
}

func TestAppendDoesNotAliasOriginal(t *testing.T) {
	h := History{SessionID: "s", Turns: make([]models.Turn, 1, 8)}
	a := h.Append(models.UserTurn("a"))
	b := h.Append(models.UserTurn("b"))
	if a.Turns[1].Text != "a" || b.Turns[1].Text != "b" {
		t.Fatalf("appends share backing storage")
	}
	if len(h.Turns) != 1 {
		t.Fatalf("original modified")
	}
}
