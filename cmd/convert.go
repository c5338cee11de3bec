package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/iksnae/vault-agent/internal"
	"github.com/iksnae/vault-agent/internal/convert"
	"github.com/iksnae/vault-agent/internal/gateway"
	"github.com/iksnae/vault-agent/internal/ledger"
	"github.com/iksnae/vault-agent/internal/vault"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	convertFolders    []string
	convertFormat     string
	convertOutDir     string
	convertReport     string
	convertNoLedger   bool
	convertSkipHealth bool
)

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Convert documents in the vault into notes",
	Long: `Convert documents into Markdown or plain text notes through the agent.

Files are queued from the arguments and from every --folder (searched
recursively, hidden folders skipped). Duplicates are queued once. Files are
converted one at a time; a failing file does not stop the batch.

Supported inputs: ` + supportedList() + `

Outputs are written next to each source, or into --out-dir inside the vault.
Existing files are never overwritten: report.md becomes report_1.md and so on.

Examples:
  vault-agent convert Inbox/report.pdf
  vault-agent convert --folder Inbox --folder Archive/2024
  vault-agent convert --folder Inbox --format text --out-dir Converted
  vault-agent convert slides.pptx --report run.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		format, err := convert.ParseFormat(convertFormat)
		if err != nil {
			return err
		}
		dest := convert.Alongside()
		if convertOutDir != "" {
			dest = convert.InFolder(vault.Clean(convertOutDir))
		}

		v, err := openVault()
		if err != nil {
			return err
		}

		set := convert.NewTaskSet()
		for _, arg := range args {
			p, err := resolveVaultPath(v, arg)
			if err != nil {
				return err
			}
			if !convert.IsSupported(p) {
				fmt.Fprintln(out, warningStyle.Render("⚠️  Skipping unsupported file:"), p)
				continue
			}
			if !set.AddFile(p) {
				internal.LogDebug("Already queued: %s", p)
			}
		}
		for _, folder := range convertFolders {
			p, err := resolveVaultPath(v, folder)
			if err != nil {
				return err
			}
			scan, err := set.AddFolder(v, p)
			if err != nil {
				return err
			}
			printFolderScan(out, p, scan)
		}
		if set.Len() == 0 {
			return errors.New("nothing to convert")
		}

		ctx := commandContext(cmd)
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()

		client := newClient()
		if !convertSkipHealth && !gateway.NewProbe(client).Check(ctx) {
			return fmt.Errorf("agent service at %s is not ready (see 'vault-agent healthcheck')", client.BaseURL())
		}

		fmt.Fprintf(out, "Converting %d file(s) to %s (%s)\n", set.Len(), format, dest)
		runner := convert.NewRunner(client, v)
		runner.OnResult = func(n, total int, res convert.Result) {
			printResult(out, n, total, res)
		}
		report := runner.RunTaskSet(ctx, set, format, dest)
		printSummary(out, report)

		if !convertNoLedger {
			if err := saveToLedger(report); err != nil {
				internal.PrintWarning(fmt.Sprintf("Failed to record run in history: %v", err))
			}
		}
		if convertReport != "" {
			if err := writeReport(convertReport, report); err != nil {
				return err
			}
			fmt.Fprintln(out, mutedStyle.Render("Report written to "+convertReport))
		}

		switch {
		case report.Canceled:
			return errors.New("conversion canceled")
		case report.Failed > 0:
			return fmt.Errorf("%d of %d file(s) failed", report.Failed, len(report.Results))
		}
		return nil
	},
}

// resolveVaultPath maps a path given on the command line onto the vault. Paths that
// exist on disk must lie inside the vault; anything else is taken as
// vault-relative and must exist there.
func resolveVaultPath(v *vault.Vault, arg string) (string, error) {
	if _, err := os.Stat(arg); err == nil {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return "", err
		}
		return v.Rel(abs)
	}
	p := vault.Clean(arg)
	if !v.Exists(p) {
		return "", fmt.Errorf("%s: not found in vault %s", arg, v.Root())
	}
	return p, nil
}

func printFolderScan(out io.Writer, folder string, scan convert.FolderScan) {
	name := folder
	if name == "" {
		name = "vault root"
	}
	switch {
	case scan.Eligible == 0:
		fmt.Fprintln(out, warningStyle.Render("⚠️  No supported files in"), name)
	case scan.Added == 0:
		fmt.Fprintf(out, "%s All %d file(s) in %s are already queued\n", infoStyle.Render("ℹ"), scan.Eligible, name)
	default:
		fmt.Fprintf(out, "%s Queued %d file(s) from %s\n", infoStyle.Render("ℹ"), scan.Added, name)
	}
}

func printResult(out io.Writer, n, total int, res convert.Result) {
	counter := mutedStyle.Render(fmt.Sprintf("[%d/%d]", n, total))
	switch {
	case res.Status == convert.StatusFailed:
		fmt.Fprintf(out, "%s %s %s: %s\n", counter, errorStyle.Render("✗"), res.SourcePath, res.ErrorDetail)
	case res.DestinationPath == "":
		fmt.Fprintf(out, "%s %s %s (no content returned)\n", counter, warningStyle.Render("✓"), res.SourcePath)
	default:
		fmt.Fprintf(out, "%s %s %s → %s (%s)\n", counter, successStyle.Render("✓"), res.SourcePath, res.DestinationPath, humanize.Bytes(uint64(res.Bytes)))
	}
}

func printSummary(out io.Writer, r convert.Report) {
	var written int
	for _, res := range r.Results {
		written += res.Bytes
	}
	fmt.Fprintln(out)
	line := fmt.Sprintf("Converted %d of %d file(s) in %s, %s written",
		r.Succeeded, len(r.Results), r.Duration().Round(time.Millisecond), humanize.Bytes(uint64(written)))
	switch {
	case r.Canceled:
		fmt.Fprintln(out, warningStyle.Render("⚠️  Canceled."), line)
	case r.Failed > 0:
		fmt.Fprintln(out, warningStyle.Render("⚠️ "), line)
	default:
		fmt.Fprintln(out, successStyle.Render("✅"), line)
	}
	fmt.Fprintln(out, mutedStyle.Render("Run "+r.ID))
}

func saveToLedger(r convert.Report) error {
	store, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer store.Close()
	// the batch context may already be canceled
	return store.SaveRun(context.Background(), r)
}

func writeReport(path string, r convert.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return &internal.ExportError{Format: "yaml", Path: path, Err: err}
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		_ = f.Close()
		return &internal.ExportError{Format: "yaml", Path: path, Err: err}
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return &internal.ExportError{Format: "yaml", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &internal.ExportError{Format: "yaml", Path: path, Err: err}
	}
	return nil
}

func supportedList() string {
	return strings.Join(convert.SupportedExtensions, ", ")
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringArrayVar(&convertFolders, "folder", nil, "Queue every supported file in this folder (repeatable)")
	convertCmd.Flags().StringVarP(&convertFormat, "format", "f", "markdown", "Output format (markdown, text)")
	convertCmd.Flags().StringVar(&convertOutDir, "out-dir", "", "Write all outputs into this vault folder instead of next to the sources")
	convertCmd.Flags().StringVar(&convertReport, "report", "", "Also write the run report as YAML to this file")
	convertCmd.Flags().BoolVar(&convertNoLedger, "no-ledger", false, "Do not record the run in the conversion history")
	convertCmd.Flags().BoolVar(&convertSkipHealth, "skip-health", false, "Start without checking that the agent is ready")
}
