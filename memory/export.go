package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/SaiNageswarS/chat-boot/llm"
	"github.com/SaiNageswarS/go-collection-boot/linq"
)

// ExportFileName is the suggested name of the downloaded history.
const ExportFileName = "chat_history.json"

// ExportEntry is one message of an exported conversation.
type ExportEntry struct {
	Role llm.Role `json:"role"`
	Text string   `json:"text"`
}

// ExportJSON serializes the history as an indented JSON array of {role, text}
// in chronological order. Non-ASCII and HTML characters are written as-is.
func ExportJSON(history []llm.Message) ([]byte, error) {
	entries, err := linq.Pipe2(
		linq.FromSlice(context.Background(), history),
		linq.Select(func(m llm.Message) ExportEntry {
			return ExportEntry{Role: m.Role, Text: m.Content}
		}),
		linq.ToSlice[ExportEntry](),
	)
	if err != nil {
		return nil, fmt.Errorf("error projecting history: %w", err)
	}
	if entries == nil {
		entries = []ExportEntry{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return nil, fmt.Errorf("error encoding history: %w", err)
	}

	return buf.Bytes(), nil
}

// ParseExport reads a document produced by ExportJSON back into messages.
func ParseExport(data []byte) ([]llm.Message, error) {
	var entries []ExportEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("error decoding history: %w", err)
	}

	messages := make([]llm.Message, 0, len(entries))
	for i, e := range entries {
		// history never stores system messages
		if !e.Role.Valid() || e.Role == llm.RoleSystem {
			return nil, fmt.Errorf("entry %d: unexpected role %q", i, e.Role)
		}
		messages = append(messages, llm.Message{Role: e.Role, Content: e.Text})
	}

	return messages, nil
}
