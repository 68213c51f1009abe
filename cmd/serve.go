package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackbound/agentrelay/internal/agent"
)

var listenAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP entrypoint",
	Long: `The serve command runs the runtime entrypoint server.

It accepts invocation payloads on POST /invocations and relays each one
through the retry orchestrator, streaming the agent's output back as
server-sent events. GET /ping reports liveness.

Every failure is delivered in-band as an error-tagged stream item; the HTTP
response itself always succeeds once streaming has begun.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "listen-addr", ":8080", "Listen address for the entrypoint server")
}

func runServe(cmd *cobra.Command, args []string) error {
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

	server := agent.NewServer(agent.ServerConfig{
		Runner:        st.orchestrator,
		Logger:        logger,
		Addr:          listenAddr,
		DefaultPrompt: cfg.DefaultPrompt,
	})
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("entrypoint error: %w", err)
	}
	return nil
}
