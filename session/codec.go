package session

import (
	"encoding/json"
	"fmt"

	"github.com/mohammad-safakhou/findly/models"
)

// CodecVersion is written into every encoded history. Decode refuses any
// other version instead of guessing at its layout.
const CodecVersion = 1

type document struct {
	Version int           `json:"version"`
	Turns   []models.Turn `json:"turns"`
}

func Encode(turns []models.Turn) ([]byte, error) {
	if err := validate(turns); err != nil {
		return nil, err
	}
	if turns == nil {
		turns = []models.Turn{}
	}
	return json.Marshal(document{Version: CodecVersion, Turns: turns})
}

func Decode(data []byte) ([]models.Turn, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if doc.Version != CodecVersion {
		return nil, fmt.Errorf("decode history: unsupported version %d", doc.Version)
	}
	if err := validate(doc.Turns); err != nil {
		return nil, err
	}
	return doc.Turns, nil
}

func validate(turns []models.Turn) error {
	for i, t := range turns {
		if !t.Role.Valid() {
			return fmt.Errorf("history turn %d: unknown role %q", i, t.Role)
		}
	}
	return nil
}
