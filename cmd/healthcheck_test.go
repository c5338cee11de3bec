package cmd

import (
	"net/http"
	"strings"
	"testing"

	"github.com/iksnae/vault-agent/testutil"
)

func TestHealthcheckCommandExists(t *testing.T) {
	// Verify healthcheck command is registered
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "healthcheck" {
			found = true
			break
		}
	}

	if !found {
		t.Error("healthcheck command not found in root command")
	}
}

func TestHealthcheckFlags(t *testing.T) {
	hc := findCommand(t, "healthcheck")

	if hc.Flag("verbose") == nil {
		t.Error("healthcheck command should have --verbose flag")
	}
	if hc.Flags().ShorthandLookup("v") == nil {
		t.Error("healthcheck command should have -v flag")
	}
	if hc.Flag("watch") == nil {
		t.Error("healthcheck command should have --watch flag")
	}
}

func TestHealthcheck(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(env *testEnv)
		args     []string
		wantErr  bool
		contains []string
	}{
		{
			name:     "ready agent",
			contains: []string{"Agent service is ready", "Vault found", "No conversion history yet", "Health check passed"},
		},
		{
			name:     "verbose shows details",
			args:     []string{"-v"},
			contains: []string{"Agent initialized: true", "Version: test", "2 convertible"},
		},
		{
			name:     "agent not initialized",
			setup:    func(env *testEnv) { env.agent.SetReady(false) },
			wantErr:  true,
			contains: []string{"answered but is not ready", "Health check failed"},
		},
		{
			name: "agent unhealthy",
			setup: func(env *testEnv) {
				env.agent.Handle("GET /health", func(w http.ResponseWriter, r *http.Request) {
					testutil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "starting"})
				})
			},
			wantErr:  true,
			contains: []string{"not ready", "503"},
		},
		{
			name:     "agent unreachable",
			setup:    func(env *testEnv) { env.agent.Close() },
			wantErr:  true,
			contains: []string{"unreachable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, map[string]string{
				"Inbox/report.pdf": "pdf",
				"Inbox/deck.pptx":  "pptx",
				"Inbox/note.md":    "note",
			})
			if tt.setup != nil {
				tt.setup(env)
			}

			out, err := env.run(t, append([]string{"healthcheck"}, tt.args...)...)
			if (err != nil) != tt.wantErr {
				t.Errorf("healthcheck error = %v, wantErr %v\n%s", err, tt.wantErr, out)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestHealthcheck_MissingVault(t *testing.T) {
	env := newTestEnv(t, nil)

	out, err := runCommand(t, "--api-url", env.agent.URL, "--vault", "/does/not/exist", "--ledger", env.ledger, "healthcheck")
	if err == nil {
		t.Fatal("expected healthcheck to fail without a vault")
	}
	if !strings.Contains(out, "Vault is not accessible") {
		t.Errorf("output missing vault failure:\n%s", out)
	}
}

func TestHealthcheck_ReadsLedger(t *testing.T) {
	env := newTestEnv(t, map[string]string{"a.pdf": "pdf"})
	if _, err := env.run(t, "convert", "a.pdf"); err != nil {
		t.Fatalf("convert failed: %v", err)
	}

	out, err := env.run(t, "healthcheck", "-v")
	if err != nil {
		t.Fatalf("healthcheck failed: %v", err)
	}
	if !strings.Contains(out, "Conversion history available") || !strings.Contains(out, "Last run:") {
		t.Errorf("output missing ledger details:\n%s", out)
	}
}
