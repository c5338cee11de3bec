package cmd

import (
	"fmt"
	"strings"

	"github.com/iksnae/vault-agent/internal/gateway"
	"github.com/spf13/cobra"
)

// conversationsCmd groups commands for conversations kept by the agent service
var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Manage conversations stored by the agent service",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversation ids",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := newClient().ListConversations(commandContext(cmd))
		if err != nil {
			return fmt.Errorf("failed to list conversations: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(list.Conversations) == 0 {
			fmt.Fprintln(out, "No conversations.")
			return nil
		}
		fmt.Fprintln(out, sectionStyle.Render(fmt.Sprintf("Conversations (%d)", list.Total)))
		for _, id := range list.Conversations {
			fmt.Fprintln(out, id)
		}
		return nil
	},
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := newClient().GetConversation(commandContext(cmd), args[0])
		if err != nil {
			return conversationError(args[0], err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, sectionStyle.Render("Conversation "+h.ConversationID))
		for _, ex := range h.History {
			fmt.Fprintln(out)
			fmt.Fprintln(out, infoStyle.Render("You:"), strings.TrimSpace(ex.User))
			fmt.Fprintln(out, successStyle.Render("Agent:"), strings.TrimSpace(ex.Agent))
		}
		return nil
	},
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().DeleteConversation(commandContext(cmd), args[0]); err != nil {
			return conversationError(args[0], err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓"), "Deleted conversation", args[0])
		return nil
	},
}

func conversationError(id string, err error) error {
	if gateway.StatusCode(err) == 404 {
		return fmt.Errorf("conversation not found: %s (use 'vault-agent conversations list' to see available conversations)", id)
	}
	return err
}

func init() {
	rootCmd.AddCommand(conversationsCmd)
	conversationsCmd.AddCommand(conversationsListCmd, conversationsShowCmd, conversationsDeleteCmd)
}
