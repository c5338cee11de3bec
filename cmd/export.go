package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iksnae/vault-agent/internal"
	"github.com/iksnae/vault-agent/internal/chat"
	"github.com/iksnae/vault-agent/internal/export"
	"github.com/spf13/cobra"
)

var (
	format    string
	outputDir string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <conversation-id>",
	Short: "Export a conversation stored by the agent service",
	Long: `Export a conversation the agent service remembers into a file.

Supported formats:
  • md, markdown - A note you can drop into the vault
  • jsonl        - One JSON object per message
  • yaml, yml    - Structured YAML
  • json         - Pretty-printed JSON

Examples:
  vault-agent export conv-123                     # Markdown into ./exports
  vault-agent export conv-123 --format json -o .  # JSON into the current directory`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.NewExporter(format)
		if err != nil {
			return err
		}

		ctx := commandContext(cmd)

		var t chat.Transcript
		err = internal.ShowProgress(ctx, fmt.Sprintf("Fetching conversation %s", args[0]), func() error {
			h, err := newClient().GetConversation(ctx, args[0])
			if err != nil {
				return err
			}
			t = chat.TranscriptFromHistory(h, time.Now())
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to fetch conversation: %w", err)
		}

		path, err := writeTranscript(t, exporter, outputDir)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓"), "Exported", len(t.Messages), "message(s) to", path)
		return nil
	},
}

// exporterFor picks an exporter from an explicit format or the target's extension
func exporterFor(target, format string) (export.Exporter, error) {
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(target), ".")
	}
	if format == "" {
		format = "md"
	}
	return export.NewExporter(format)
}

// writeTranscript exports t to target. A directory target (or an empty one)
// gets a generated file name; the directory is created if missing.
func writeTranscript(t chat.Transcript, exporter export.Exporter, target string) (string, error) {
	path := target
	if path == "" || strings.HasSuffix(path, string(os.PathSeparator)) || isDir(path) {
		path = filepath.Join(path, transcriptFileName(t, exporter.Extension()))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}
	file, err := os.Create(path)
	if err != nil {
		return "", &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}
	if err := exporter.Export(t, file); err != nil {
		_ = file.Close()
		return "", &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return "", &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}
	internal.LogDebug("Wrote %d message(s) to %s", len(t.Messages), path)
	return path, nil
}

func transcriptFileName(t chat.Transcript, ext string) string {
	id := t.ConversationID
	if id == "" {
		stamp := t.ExportedAt
		if stamp.IsZero() {
			stamp = time.Now()
		}
		id = stamp.Format("20060102-150405")
	}
	return fmt.Sprintf("conversation_%s.%s", id, ext)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&format, "format", "f", "md", "Export format (md, jsonl, yaml, json)")
	exportCmd.Flags().StringVarP(&outputDir, "out", "o", "./exports", "Output file or directory")
}
