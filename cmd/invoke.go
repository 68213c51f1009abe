package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// invokeCmd represents the invoke command
var invokeCmd = &cobra.Command{
	Use:   "invoke [prompt]",
	Short: "Run a single prompt against the agent",
	Long: `The invoke command sends one prompt through the full pipeline and prints
the agent's streamed output to stdout.

The prompt is taken from the command arguments; when omitted, the default
prompt is used. An expired bearer token is refreshed and the request retried
once, transparently.`,
	RunE: runInvoke,
}

func init() {
	rootCmd.AddCommand(invokeCmd)
}

func runInvoke(cmd *cobra.Command, args []string) error {
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

	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		prompt = cfg.DefaultPrompt
		logger.InfoVerbose("no prompt given, using default: %s", prompt)
	}

	invokeCtx, invokeCancel := context.WithTimeout(ctx, cfg.InvokeTimeout)
	defer invokeCancel()

	var terminal error
	for item := range st.orchestrator.Run(invokeCtx, prompt) {
		if item.IsError() {
			terminal = fmt.Errorf("%s: %s", item.Type, item.Error)
			continue
		}
		fmt.Print(item.Data)
	}
	fmt.Println()

	return terminal
}
