package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackbound/agentrelay/internal/agent"
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive prompt loop",
	Long: `The chat command starts an interactive readline loop against the agent.

Each line is one logical request through the retry orchestrator: output is
streamed as it arrives, and an expired bearer token is refreshed behind the
scenes without interrupting the session. Type 'exit' or 'quit' to leave.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	setupSignalHandler(cancel)

	logger := newLogger()
	st, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}

	chat := agent.NewChat(st.orchestrator, logger)
	if err := chat.Run(ctx); err != nil {
		return fmt.Errorf("chat error: %w", err)
	}
	return nil
}
