package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/iksnae/vault-agent/internal/chat"
)

// JSONLExporter exports transcripts in JSONL format (one message per line)
type JSONLExporter struct{}

// Export exports a transcript to JSONL format
func (e *JSONLExporter) Export(t chat.Transcript, w io.Writer) error {
	enc := json.NewEncoder(w)

	for _, msg := range t.Messages {
		obj := map[string]interface{}{
			"role":    msg.Role,
			"kind":    msg.Kind,
			"content": msg.Content,
		}
		if !msg.CreatedAt.IsZero() {
			obj["timestamp"] = msg.CreatedAt.UTC().Format(time.RFC3339)
		}
		if t.ConversationID != "" {
			obj["conversation_id"] = t.ConversationID
		}

		if err := enc.Encode(obj); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
