package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/iksnae/vault-agent/internal/convert"
	"github.com/iksnae/vault-agent/internal/gateway"
	"github.com/iksnae/vault-agent/internal/ledger"
	"github.com/spf13/cobra"
)

var (
	healthcheckVerbose bool
	healthcheckWatch   time.Duration
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that the agent service is ready and the vault is usable",
	Long: `Check the health of vault-agent by verifying:
  • The agent service answers /health and reports an initialized agent
  • The vault directory is readable and has convertible documents
  • The conversion history ledger can be opened

With --watch the agent's readiness is polled and every change is reported
until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		ctx := commandContext(cmd)

		fmt.Fprintln(out, sectionStyle.Render("🔍 Vault Agent Health Check"))
		fmt.Fprintln(out)

		// Step 1: Agent service
		fmt.Fprintln(out, infoStyle.Render("Step 1: Contacting agent service..."))
		client := newClient()
		probe := gateway.NewProbe(client)
		status := probe.Status(ctx)
		switch {
		case status.Ready:
			fmt.Fprintln(out, successStyle.Render("✅ Agent service is ready"))
		case status.Reachable:
			fmt.Fprintln(out, warningStyle.Render("⚠️  Agent service answered but is not ready"))
		default:
			fmt.Fprintln(out, errorStyle.Render("❌ Agent service is unreachable"))
		}
		if healthcheckVerbose {
			fmt.Fprintf(out, "   URL: %s\n", client.BaseURL())
			fmt.Fprintf(out, "   Latency: %s\n", status.Latency.Round(time.Millisecond))
			if status.Health != nil {
				fmt.Fprintf(out, "   Status: %s\n", status.Health.Status)
				fmt.Fprintf(out, "   Agent initialized: %t\n", status.Health.AgentInitialized)
				if status.Health.Version != "" {
					fmt.Fprintf(out, "   Version: %s\n", status.Health.Version)
				}
			}
		}
		if status.Err != nil {
			fmt.Fprintf(out, "   %s\n", status.Err)
		}
		fmt.Fprintln(out)

		// Step 2: Vault
		fmt.Fprintln(out, infoStyle.Render("Step 2: Checking vault..."))
		vaultOK := false
		v, err := openVault()
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Vault is not accessible:"), err)
		} else {
			vaultOK = true
			fmt.Fprintln(out, successStyle.Render("✅ Vault found"))
			if healthcheckVerbose {
				fmt.Fprintf(out, "   Root: %s\n", v.Root())
				if files, err := v.ListFiles(""); err == nil {
					eligible := 0
					for _, f := range files {
						if convert.IsSupported(f) {
							eligible++
						}
					}
					fmt.Fprintf(out, "   Files: %s (%s convertible)\n", humanize.Comma(int64(len(files))), humanize.Comma(int64(eligible)))
				}
			}
		}
		fmt.Fprintln(out)

		// Step 3: Ledger
		fmt.Fprintln(out, infoStyle.Render("Step 3: Checking conversion history..."))
		checkLedger(ctx, cmd)
		fmt.Fprintln(out)

		// Summary
		fmt.Fprintln(out, sectionStyle.Render("📊 Summary"))
		fmt.Fprintln(out)
		if !status.Ready || !vaultOK {
			fmt.Fprintln(out, errorStyle.Render("❌ Health check failed"))
			if !status.Ready {
				fmt.Fprintf(out, "   • Agent service at %s is not ready\n", client.BaseURL())
			}
			if !vaultOK {
				fmt.Fprintf(out, "   • Vault %s is not accessible\n", cfg.VaultPath)
			}
			if healthcheckWatch <= 0 {
				return errors.New("health check failed")
			}
		} else {
			fmt.Fprintln(out, successStyle.Render("✅ Health check passed!"))
		}

		if healthcheckWatch > 0 {
			return watchReadiness(ctx, cmd, probe, healthcheckWatch)
		}
		return nil
	},
}

func checkLedger(ctx context.Context, cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	if _, err := os.Stat(cfg.LedgerPath); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(out, warningStyle.Render("⚠️  No conversion history yet"))
		if healthcheckVerbose {
			fmt.Fprintf(out, "   Expected: %s\n", cfg.LedgerPath)
		}
		return
	}
	store, err := ledger.OpenReadOnly(cfg.LedgerPath)
	if err != nil {
		fmt.Fprintln(out, warningStyle.Render("⚠️  Conversion history is unreadable:"), err)
		return
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, 1)
	if err != nil {
		fmt.Fprintln(out, warningStyle.Render("⚠️  Conversion history is unreadable:"), err)
		return
	}
	fmt.Fprintln(out, successStyle.Render("✅ Conversion history available"))
	if healthcheckVerbose {
		fmt.Fprintf(out, "   Database: %s\n", cfg.LedgerPath)
		if len(runs) > 0 {
			fmt.Fprintf(out, "   Last run: %s\n", humanize.Time(runs[0].StartedAt))
		}
	}
}

func watchReadiness(ctx context.Context, cmd *cobra.Command, probe *gateway.Probe, interval time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("Watching every %s, press Ctrl+C to stop", interval)))
	probe.Poll(ctx, interval, func(ready bool) {
		stamp := time.Now().Format("15:04:05")
		if ready {
			fmt.Fprintf(out, "%s %s\n", mutedStyle.Render(stamp), successStyle.Render("✅ agent ready"))
		} else {
			fmt.Fprintf(out, "%s %s\n", mutedStyle.Render(stamp), errorStyle.Render("❌ agent not ready"))
		}
	})
	return nil
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVarP(&healthcheckVerbose, "verbose", "v", false, "Show detailed diagnostic information")
	healthcheckCmd.Flags().DurationVar(&healthcheckWatch, "watch", 0, "Keep polling readiness at this interval (e.g. 5s)")
}
