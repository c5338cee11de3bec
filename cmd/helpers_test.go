package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iksnae/vault-agent/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// testEnv is a fake agent plus an on-disk vault and ledger
type testEnv struct {
	agent  *testutil.FakeAgent
	vault  string
	ledger string
}

func newTestEnv(t *testing.T, files map[string]string) *testEnv {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", testutil.CreateTempDir(t))
	env := &testEnv{
		agent:  testutil.NewFakeAgent(t),
		vault:  testutil.CreateTempDir(t),
		ledger: filepath.Join(testutil.CreateTempDir(t), "ledger.db"),
	}
	testutil.WriteFiles(t, env.vault, files)
	return env
}

// args prefixes the global flags pointing at the environment
func (e *testEnv) args(args ...string) []string {
	return append([]string{"--api-url", e.agent.URL, "--vault", e.vault, "--ledger", e.ledger}, args...)
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCommandWithInput(t, "", e.args(args...)...)
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCommandWithInput(t, "", args...)
}

func runCommandWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg = nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	rootCmd.SetIn(nil)
	return out.String(), err
}

// resetFlags restores every flag to its default so runs do not leak into
// each other through the package-level flag variables
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func findCommand(t *testing.T, path ...string) *cobra.Command {
	t.Helper()
	c, _, err := rootCmd.Find(path)
	if err != nil || c == rootCmd {
		t.Fatalf("command %v not found", path)
	}
	return c
}
