package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stackbound/agentrelay/internal/config"
	"github.com/stackbound/agentrelay/internal/logging"
)

var (
	version string

	region        string
	secretID      string
	agentARNParam string
	agentARN      string
	qualifier     string
	entryTool     string
	expiryPhrases []string
	invokeTimeout time.Duration
	defaultPrompt string
	verbose       bool
	noColor       bool
	jsonRPC       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "agentrelay",
	Short: "Relay for a Bedrock AgentCore support agent",
	Long: `agentrelay drives a support agent hosted on Bedrock AgentCore.

It resolves the agent runtime from SSM, authenticates with a bearer token
stored in Secrets Manager, and streams one conversational turn at a time over
an MCP streamable-http session. When the runtime rejects an expired token,
the stored Cognito credentials are used to refresh it and the request is
retried once, transparently.

The tool provides several modes:
- serve: run the HTTP entrypoint that relays invocation payloads as SSE
- invoke: run a single prompt from the command line
- chat: interactive prompt loop
- check: verify connectivity and list the runtime's tools
- provision: converge the IAM role and Cognito pool the runtime needs`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// SetVersion sets the version for the application
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&region, "region", "", "AWS region (defaults to the AWS config chain)")
	pf.StringVar(&secretID, "secret-id", config.DefaultSecretID, "Secrets Manager key of the credential bundle")
	pf.StringVar(&agentARNParam, "agent-arn-param", config.DefaultAgentARNParameter, "SSM parameter holding the agent runtime ARN")
	pf.StringVar(&agentARN, "agent-arn", "", "Agent runtime ARN (bypasses SSM resolution)")
	pf.StringVar(&qualifier, "qualifier", config.DefaultQualifier, "Runtime endpoint qualifier")
	pf.StringVar(&entryTool, "entry-tool", "", "Name of the conversational entry tool (auto-discovered when empty)")
	pf.StringSliceVar(&expiryPhrases, "expiry-phrase", []string{config.DefaultExpiryPhrase}, "Error substrings classified as an expired credential")
	pf.DurationVar(&invokeTimeout, "timeout", config.DefaultInvokeTimeout, "Timeout for a single invocation")
	pf.StringVar(&defaultPrompt, "default-prompt", config.DefaultPrompt, "Prompt used when an invocation payload omits one")
	pf.BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	pf.BoolVar(&noColor, "no-color", false, "Disable colored output")
	pf.BoolVar(&jsonRPC, "json-rpc", false, "Enable full JSON-RPC message logging")
}

// buildConfig assembles the configuration from the CLI flags.
func buildConfig() (*config.Config, error) {
	cfg := config.Default()
	cfg.Region = region
	cfg.SecretID = secretID
	cfg.AgentARNParameter = agentARNParam
	cfg.AgentARN = agentARN
	cfg.Qualifier = qualifier
	cfg.EntryTool = entryTool
	cfg.ExpiryPhrases = expiryPhrases
	cfg.InvokeTimeout = invokeTimeout
	cfg.DefaultPrompt = defaultPrompt

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger() *logging.Logger {
	return logging.NewLogger(verbose, !noColor, jsonRPC)
}

// setupSignalHandler sets up graceful shutdown on interrupt signals
func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down gracefully...")
		cancel()
	}()
}
