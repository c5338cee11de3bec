package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/iksnae/vault-agent/internal/chat"
)

func TestMarkdownExporter_Export(t *testing.T) {
	tests := []struct {
		name    string
		tr      chat.Transcript
		want    []string
		notWant []string
	}{
		{
			name: "basic transcript",
			tr:   chat.CreateTestTranscript("conv-1"),
			want: []string{
				"# Conversation conv-1",
				"**Exported:** 2025-03-01T09:30:00Z",
				"**Messages:** 2",
				"**You:** (09:30:00)",
				"What's in my inbox folder?",
				"**Agent:** (09:30:02)",
				"---",
			},
		},
		{
			name: "no conversation id",
			tr:   chat.CreateTestTranscriptWithMessages("", nil),
			want: []string{"# Conversation\n", "**Messages:** 0"},
		},
		{
			name: "notices are inline",
			tr: chat.CreateTestTranscriptWithMessages("conv-2", []chat.Message{
				{Role: chat.RoleUser, Kind: chat.KindText, Content: "long question"},
				{Role: chat.RoleAgent, Kind: chat.KindStopped, Content: chat.StoppedText},
				{Role: chat.RoleAgent, Kind: chat.KindError, Content: "Sorry, an error occurred: boom"},
			}),
			want:    []string{"*Generation stopped.*", "*Sorry, an error occurred: boom*"},
			notWant: []string{"**Agent:**"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := (&MarkdownExporter{}).Export(tt.tr, &buf); err != nil {
				t.Fatalf("MarkdownExporter.Export() error = %v", err)
			}
			output := buf.String()
			for _, want := range tt.want {
				if !strings.Contains(output, want) {
					t.Errorf("MarkdownExporter.Export() output missing %q\nGot:\n%s", want, output)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(output, nw) {
					t.Errorf("MarkdownExporter.Export() output should not contain %q\nGot:\n%s", nw, output)
				}
			}
		})
	}
}

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "hello", want: "hello"},
		{name: "bold", input: "**bold**", want: "\\*\\*bold\\*\\*"},
		{name: "underscore bold", input: "__x__", want: "\\_\\_x\\_\\_"},
		{name: "code block untouched", input: "```\n**a**\n```", want: "```\n**a**\n```"},
		{name: "mixed", input: "**a**\n```go\n__b__\n```\n__c__", want: "\\*\\*a\\*\\*\n```go\n__b__\n```\n\\_\\_c\\_\\_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := escapeMarkdown(tt.input); got != tt.want {
				t.Errorf("escapeMarkdown() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMarkdownExporter_Extension(t *testing.T) {
	if got := (&MarkdownExporter{}).Extension(); got != "md" {
		t.Errorf("MarkdownExporter.Extension() = %v, want md", got)
	}
}
