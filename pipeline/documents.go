package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
)

// Document is one input record. Text feeds the embedding model; Fields
// holds every JSON field of the record (text included) and becomes the
// stored payload. A document's position in the input array is its
// identity across runs.
type Document struct {
	Text   string
	Fields map[string]any
}

// LoadDocuments parses a JSON array of objects. Every element must
// carry a string "text" field.
func LoadDocuments(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read documents %s: %w", path, err)
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse documents %s: %w", path, err)
	}

	docs := make([]Document, 0, len(raw))
	for i, fields := range raw {
		text, ok := fields["text"].(string)
		if !ok {
			return nil, fmt.Errorf("document %d: missing string \"text\" field", i)
		}
		docs = append(docs, Document{Text: text, Fields: fields})
	}
	return docs, nil
}
