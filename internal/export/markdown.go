package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iksnae/vault-agent/internal/chat"
)

// MarkdownExporter exports transcripts as a vault note
type MarkdownExporter struct{}

// Export exports a transcript to Markdown format
func (e *MarkdownExporter) Export(t chat.Transcript, w io.Writer) error {
	// Header
	if t.ConversationID != "" {
		_, _ = fmt.Fprintf(w, "# Conversation %s\n\n", t.ConversationID)
	} else {
		_, _ = fmt.Fprintf(w, "# Conversation\n\n")
	}
	if !t.ExportedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "**Exported:** %s  \n", t.ExportedAt.Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(t.Messages))

	_, _ = fmt.Fprintf(w, "---\n\n")

	for i, msg := range t.Messages {
		switch msg.Kind {
		case chat.KindStopped, chat.KindError:
			// Session notices are rendered inline, not as a speaker turn
			_, _ = fmt.Fprintf(w, "*%s*\n\n", msg.Content)
		default:
			timestamp := ""
			if !msg.CreatedAt.IsZero() {
				timestamp = fmt.Sprintf(" (%s)", msg.CreatedAt.Format("15:04:05"))
			}
			_, _ = fmt.Fprintf(w, "**%s:**%s\n\n%s\n\n", speaker(msg.Role), timestamp, escapeMarkdown(msg.Content))
		}

		// Add horizontal rule after each message (except the last one)
		if i < len(t.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

func speaker(r chat.Role) string {
	if r == chat.RoleUser {
		return "You"
	}
	return "Agent"
}

// escapeMarkdown escapes bold markers outside code blocks so a message
// cannot break the speaker headings
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
