package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/iksnae/vault-agent/internal/chat"
	"gopkg.in/yaml.v3"
)

func TestYAMLExporter_Export(t *testing.T) {
	tests := []struct {
		name       string
		transcript chat.Transcript
		wantErr    bool
	}{
		{
			name:       "basic transcript",
			transcript: chat.CreateTestTranscript("conv-1"),
		},
		{
			name:       "empty transcript",
			transcript: chat.CreateTestTranscriptWithMessages("conv-2", nil),
		},
		{
			name: "transcript with notices",
			transcript: chat.CreateTestTranscriptWithMessages("conv-3", []chat.Message{
				{ID: "a", Role: chat.RoleUser, Kind: chat.KindText, Content: "Hello"},
				{ID: "b", Role: chat.RoleAgent, Kind: chat.KindStopped, Content: chat.StoppedText},
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			exporter := &YAMLExporter{}

			err := exporter.Export(tt.transcript, &buf)
			if (err != nil) != tt.wantErr {
				t.Errorf("YAMLExporter.Export() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			output := buf.String()
			var got chat.Transcript
			if err := yaml.Unmarshal([]byte(output), &got); err != nil {
				t.Fatalf("Output is not valid YAML: %v\nOutput: %s", err, output)
			}
			if got.ConversationID != tt.transcript.ConversationID {
				t.Errorf("conversation_id = %q, want %q", got.ConversationID, tt.transcript.ConversationID)
			}
			if len(got.Messages) != len(tt.transcript.Messages) {
				t.Errorf("messages = %d, want %d", len(got.Messages), len(tt.transcript.Messages))
			}
			if !strings.Contains(output, "conversation_id:") {
				t.Errorf("Output should use snake_case keys, got:\n%s", output)
			}
		})
	}
}

func TestYAMLExporter_Extension(t *testing.T) {
	exporter := &YAMLExporter{}
	if got := exporter.Extension(); got != "yaml" {
		t.Errorf("YAMLExporter.Extension() = %v, want yaml", got)
	}
}
