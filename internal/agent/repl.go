package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/stackbound/agentrelay/internal/logging"
)

// Chat is an interactive prompt loop against the remote agent. Each line is
// one logical request through the orchestrator.
type Chat struct {
	runner Runner
	logger *logging.Logger
}

// NewChat creates a Chat.
func NewChat(runner Runner, logger *logging.Logger) *Chat {
	return &Chat{runner: runner, logger: logger}
}

// Run starts the chat loop. It returns when the user exits or ctx is
// cancelled.
func (c *Chat) Run(ctx context.Context) error {
	historyFile := filepath.Join(os.TempDir(), ".agentrelay_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "agent> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer func() { _ = rl.Close() }()

	c.logger.Info("Chat started. Type a prompt, or 'exit' to quit.")
	fmt.Println()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Chat shutting down...")
			return nil
		default:
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				continue
			}
		} else if errors.Is(err, io.EOF) {
			c.logger.Info("Goodbye!")
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		prompt := strings.TrimSpace(line)
		if prompt == "" {
			continue
		}
		if prompt == "exit" || prompt == "quit" {
			c.logger.Info("Goodbye!")
			return nil
		}

		c.stream(ctx, prompt)
		fmt.Println()
	}
}

// stream runs one request and prints its items.
func (c *Chat) stream(ctx context.Context, prompt string) {
	for item := range c.runner.Run(ctx, prompt) {
		if item.IsError() {
			c.logger.Error("%s: %s", item.Type, item.Error)
			continue
		}
		fmt.Print(item.Data)
	}
	fmt.Println()
}
