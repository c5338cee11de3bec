package chat

import (
	"fmt"
	"strings"
)

// Augmenter rewrites the text sent to the agent. The transcript always
// keeps what the user typed.
type Augmenter interface {
	Augment(text string) string
}

// NoAugmentation sends the user's text unchanged
type NoAugmentation struct{}

func (NoAugmentation) Augment(text string) string { return text }

// DocumentReference appends a reference to the document the user is working
// on. Only the path, line and selection are sent, never the file content.
type DocumentReference struct {
	Path      string
	Line      int // 1-based, 0 when unknown
	Selection string
}

func (d DocumentReference) Augment(text string) string {
	if d.Path == "" {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Current document: %s", d.Path)
	if d.Line > 0 {
		fmt.Fprintf(&b, "\nCurrent line: %d", d.Line)
	}
	if d.Selection != "" {
		fmt.Fprintf(&b, "\nSelected text: %q", d.Selection)
	}
	return b.String()
}
