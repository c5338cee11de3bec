package chat

import (
	"time"
)

// CreateTestTranscript creates a transcript with one exchange
func CreateTestTranscript(conversationID string) Transcript {
	now := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	return Transcript{
		ConversationID: conversationID,
		ExportedAt:     now,
		Messages: []Message{
			{ID: "m1", Role: RoleUser, Kind: KindText, Content: "What's in my inbox folder?", CreatedAt: now},
			{ID: "m2", Role: RoleAgent, Kind: KindText, Content: "Three notes: **todo**, ideas and a meeting log.", CreatedAt: now.Add(2 * time.Second)},
		},
	}
}

// CreateTestTranscriptWithMessages creates a transcript with custom messages
func CreateTestTranscriptWithMessages(conversationID string, messages []Message) Transcript {
	return Transcript{
		ConversationID: conversationID,
		ExportedAt:     time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
		Messages:       messages,
	}
}
