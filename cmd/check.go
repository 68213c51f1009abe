package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify connectivity to the agent runtime",
	Long: `The check command resolves the runtime ARN, reads the stored bearer
token, opens an MCP session against the runtime, and lists the tools it
exposes. It exercises every dependency of an invocation without running a
conversational turn.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.InvokeTimeout)
	defer cancel()

	logger := newLogger()
	st, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}

	desc, err := st.factory.Build(ctx)
	if err != nil {
		return err
	}
	logger.Success("transport descriptor built")
	logger.InfoVerbose("endpoint: %s", desc.EndpointURL)

	tools, err := st.engine.ListCapabilities(ctx, desc)
	if err != nil {
		return err
	}

	logger.Success("runtime reachable, %d tool(s) exposed", len(tools))
	for _, tool := range tools {
		if tool.Description != "" {
			logger.Info("  %s - %s", tool.Name, tool.Description)
		} else {
			logger.Info("  %s", tool.Name)
		}
	}
	return nil
}
