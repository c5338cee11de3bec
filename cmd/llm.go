package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iksnae/vault-agent/internal"
	"github.com/iksnae/vault-agent/internal/gateway"
	"github.com/spf13/cobra"
)

var (
	llmProvider string
	llmModel    string
	llmAPIKey   string
	llmAPIBase  string
	llmHybrid   bool
	llmReload   bool
)

// llmCmd groups the LLM provider commands
var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure the LLM the agent uses",
	Long: `Push LLM provider settings to the agent service.

Settings come from the llm section of the config file and can be overridden
with flags. Run 'vault-agent llm providers' for the supported providers.

Examples:
  vault-agent llm test --provider openai --model gpt-4o-mini --llm-api-key sk-...
  vault-agent llm configure --provider ollama --model qwen3:1.7b
  vault-agent llm reload`,
}

var llmTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Check that the agent can reach the LLM with these settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLLMSteps(cmd, llmStep{"Testing", newClient().TestLLM})
	},
}

var llmConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Switch the agent to these LLM settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		steps := []llmStep{{"Configuring", client.ConfigureLLM}}
		if llmReload {
			steps = append(steps, llmStep{"Reloading agent with", client.ReloadAgent})
		}
		return runLLMSteps(cmd, steps...)
	},
}

var llmReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Rebuild the agent with these LLM settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLLMSteps(cmd, llmStep{"Reloading agent with", newClient().ReloadAgent})
	},
}

var llmProvidersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List supported LLM providers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, p := range internal.Providers() {
			marker := " "
			if cfg != nil && p.ID == cfg.LLM.Provider {
				marker = "*"
			}
			key := ""
			if p.RequiresAPIKey {
				key = mutedStyle.Render(" (API key)")
			}
			fmt.Fprintf(out, "%s %-9s %-18s default model %s%s\n", marker, p.ID, p.Label, p.DefaultModel, key)
			if p.APIBaseHint != "" && verbose {
				fmt.Fprintf(out, "  %s\n", mutedStyle.Render(p.APIBaseHint))
			}
		}
		return nil
	},
}

type llmCall func(ctx context.Context, s gateway.LLMSettings) (*gateway.LLMResult, error)

type llmStep struct {
	action string
	call   llmCall
}

// runLLMSteps sends the merged settings to each endpoint in turn, stopping
// at the first failure
func runLLMSteps(cmd *cobra.Command, steps ...llmStep) error {
	settings, err := llmSettings(cmd)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	target := settings.Provider + "/" + settings.Model
	var messages []string
	progress := make([]internal.ProgressStep, 0, len(steps))
	for _, step := range steps {
		step := step
		progress = append(progress, internal.ProgressStep{
			Message: fmt.Sprintf("%s %s", step.action, target),
			Fn: func() error {
				res, err := step.call(ctx, settings)
				if err != nil {
					return err
				}
				if !res.Success {
					if res.Error == "" {
						return errors.New("agent reported failure")
					}
					return errors.New(res.Error)
				}
				if res.Message != "" {
					messages = append(messages, res.Message)
				}
				return nil
			},
		})
	}
	if err := internal.ShowProgressWithSteps(ctx, progress); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, successStyle.Render("✓"), target, "OK")
	for _, m := range messages {
		fmt.Fprintln(out, "  "+m)
	}
	return nil
}

// llmSettings merges the config's llm section with any changed flags
func llmSettings(cmd *cobra.Command) (gateway.LLMSettings, error) {
	s := gateway.LLMSettings{
		Provider:   cfg.LLM.Provider,
		Model:      cfg.LLM.Model,
		APIKey:     cfg.LLM.APIKey,
		APIBase:    cfg.LLM.APIBase,
		HybridMode: cfg.LLM.HybridMode,
	}
	flags := cmd.Flags()
	if flags.Changed("provider") {
		s.Provider = strings.ToLower(llmProvider)
		// a different provider's configured model does not carry over
		if s.Provider != cfg.LLM.Provider && !flags.Changed("model") {
			s.Model = ""
		}
	}
	if flags.Changed("model") {
		s.Model = llmModel
	}
	if flags.Changed("llm-api-key") {
		s.APIKey = llmAPIKey
	}
	if flags.Changed("api-base") {
		s.APIBase = llmAPIBase
	}
	if flags.Changed("hybrid") {
		s.HybridMode = llmHybrid
	}

	p, ok := internal.LookupProvider(s.Provider)
	if !ok {
		return s, &internal.ConfigError{Key: "llm.provider", Err: fmt.Errorf("unknown provider %q (supported: %s)", s.Provider, strings.Join(internal.ProviderIDs(), ", "))}
	}
	s.Model = p.ModelOrDefault(s.Model)
	if p.RequiresAPIKey && s.APIKey == "" {
		return s, &internal.ConfigError{Key: "llm.api_key", Err: fmt.Errorf("%s requires an API key (--llm-api-key)", p.Label)}
	}
	return s, nil
}

func init() {
	rootCmd.AddCommand(llmCmd)
	llmCmd.AddCommand(llmTestCmd, llmConfigureCmd, llmReloadCmd, llmProvidersCmd)

	llmCmd.PersistentFlags().StringVar(&llmProvider, "provider", "", "LLM provider ("+strings.Join(internal.ProviderIDs(), ", ")+")")
	llmCmd.PersistentFlags().StringVar(&llmModel, "model", "", "Model name (default depends on provider)")
	llmCmd.PersistentFlags().StringVar(&llmAPIKey, "llm-api-key", "", "API key for the LLM provider")
	llmCmd.PersistentFlags().StringVar(&llmAPIBase, "api-base", "", "Override the provider's API base URL")
	llmConfigureCmd.Flags().BoolVar(&llmReload, "reload", false, "Also rebuild the agent after configuring")
	llmCmd.PersistentFlags().BoolVar(&llmHybrid, "hybrid", false, "Use a local model for tool calls alongside the remote one")
}
