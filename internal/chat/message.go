// Package chat implements the conversation session: one exchange with the
// agent at a time, cancellable mid-flight, continuing the server's
// conversation id across turns.
package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/iksnae/vault-agent/internal/gateway"
)

// Role is who a message is attributed to
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Kind distinguishes regular replies from session notices
type Kind string

const (
	KindText    Kind = "text"
	KindPending Kind = "pending" // placeholder while a request is outstanding
	KindStopped Kind = "stopped" // a request was cancelled
	KindError   Kind = "error"   // a request failed
)

// Notice texts shown in the transcript
const (
	PendingText = "Thinking..."
	StoppedText = "Generation stopped."
)

// Message is one transcript entry. Messages are never edited; the pending
// placeholder is removed when its request resolves.
type Message struct {
	ID        string    `json:"id" yaml:"id"`
	Role      Role      `json:"role" yaml:"role"`
	Kind      Kind      `json:"kind" yaml:"kind"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

func newMessage(role Role, kind Kind, content string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Kind:      kind,
		Content:   content,
		CreatedAt: now,
	}
}

// Transcript is a snapshot of a session suitable for export
type Transcript struct {
	ConversationID string    `json:"conversation_id,omitempty" yaml:"conversation_id,omitempty"`
	ExportedAt     time.Time `json:"exported_at" yaml:"exported_at"`
	Messages       []Message `json:"messages" yaml:"messages"`
}

// TranscriptFromHistory rebuilds a transcript from the exchanges the service
// stored for a conversation. The service keeps no timestamps.
func TranscriptFromHistory(h *gateway.ConversationHistory, exportedAt time.Time) Transcript {
	t := Transcript{ConversationID: h.ConversationID, ExportedAt: exportedAt}
	for _, ex := range h.History {
		if ex.User != "" {
			t.Messages = append(t.Messages, newMessage(RoleUser, KindText, ex.User, time.Time{}))
		}
		if ex.Agent != "" {
			t.Messages = append(t.Messages, newMessage(RoleAgent, KindText, ex.Agent, time.Time{}))
		}
	}
	return t
}
