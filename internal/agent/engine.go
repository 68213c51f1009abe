package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stackbound/agentrelay/internal/logging"
)

// EngineConfig holds configuration for creating an Engine.
type EngineConfig struct {
	// EntryTool names the conversational entry tool on the runtime. When
	// empty, the engine requires exactly one remote tool accepting a
	// "prompt" parameter and uses that.
	EntryTool string

	// Version is reported as the client version during the MCP handshake.
	Version string

	Logger *logging.Logger
}

// Engine drives a single streaming invocation over an MCP streamable-HTTP
// session. Each Invoke call owns one session and one in-flight request; the
// produced chunk sequence is finite and not restartable.
type Engine struct {
	entryTool string
	version   string
	logger    *logging.Logger
}

// NewEngine creates an Engine from a configuration.
func NewEngine(cfg EngineConfig) *Engine {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	return &Engine{
		entryTool: cfg.EntryTool,
		version:   version,
		logger:    cfg.Logger,
	}
}

// Invoke opens a session against the descriptor, discovers the runtime's
// tools, and drives one conversational turn for the prompt. emit is called
// for each output chunk as it arrives and never after Invoke returns. The
// returned error is raw; the caller classifies it. The session is closed on
// every exit path, including early consumer abandonment via ctx.
func (e *Engine) Invoke(ctx context.Context, desc Descriptor, prompt string, emit func(string)) error {
	mcpClient, err := e.openSession(ctx, desc)
	if err != nil {
		return err
	}

	// Guard emissions so a notification racing with teardown cannot deliver
	// a chunk after Invoke has returned.
	var mu sync.Mutex
	done := false
	safeEmit := func(chunk string) {
		mu.Lock()
		defer mu.Unlock()
		if !done {
			emit(chunk)
		}
	}
	defer func() {
		mu.Lock()
		done = true
		mu.Unlock()
		_ = mcpClient.Close()
	}()

	mcpClient.OnNotification(func(notification mcp.JSONRPCNotification) {
		e.logger.Notification(notification.Method, notification.Params)
		if chunk, ok := notificationChunk(notification); ok {
			safeEmit(chunk)
		}
	})

	toolsReq := mcp.ListToolsRequest{}
	e.logger.Request("tools/list", toolsReq.Params)
	toolsRes, err := mcpClient.ListTools(ctx, toolsReq)
	if err != nil {
		return fmt.Errorf("listing runtime tools: %w", err)
	}
	e.logger.Response("tools/list", toolsRes)

	toolName, err := e.selectEntryTool(toolsRes.Tools)
	if err != nil {
		return err
	}
	e.logger.InfoVerbose("invoking entry tool %s", toolName)

	callReq := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: map[string]interface{}{"prompt": prompt},
		},
	}
	e.logger.Request("tools/call", callReq.Params)
	result, err := mcpClient.CallTool(ctx, callReq)
	if err != nil {
		return fmt.Errorf("streaming turn against %s: %w", toolName, err)
	}
	e.logger.Response("tools/call", result)

	if result.IsError {
		return fmt.Errorf("runtime reported turn failure: %s", flattenText(result.Content))
	}

	for _, content := range result.Content {
		if textContent, ok := mcp.AsTextContent(content); ok && textContent.Text != "" {
			safeEmit(textContent.Text)
		}
	}
	return nil
}

// ListCapabilities opens a session and returns the tools the runtime
// exposes. Used by the connectivity check.
func (e *Engine) ListCapabilities(ctx context.Context, desc Descriptor) ([]mcp.Tool, error) {
	mcpClient, err := e.openSession(ctx, desc)
	if err != nil {
		return nil, err
	}
	defer func() { _ = mcpClient.Close() }()

	toolsRes, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("listing runtime tools: %w", err)
	}
	return toolsRes.Tools, nil
}

// openSession creates, starts, and initializes the MCP session. Setup
// failures are wrapped with the initialization-failure prefix the classifier
// recognizes: the runtime rejects expired bearer tokens here.
func (e *Engine) openSession(ctx context.Context, desc Descriptor) (*client.Client, error) {
	mcpClient, err := client.NewStreamableHttpClient(desc.EndpointURL,
		transport.WithHTTPHeaders(desc.headers()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", initFailurePrefix, err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("%s: %w", initFailurePrefix, err)
	}

	initReq := mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: protocolVersion,
			ClientInfo: mcp.Implementation{
				Name:    "agentrelay",
				Version: e.version,
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	}
	e.logger.Request("initialize", initReq.Params)
	result, err := mcpClient.Initialize(ctx, initReq)
	if err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("%s: %w", initFailurePrefix, err)
	}
	e.logger.Response("initialize", result)

	return mcpClient, nil
}

// selectEntryTool picks the conversational entry point among the runtime's
// tools.
func (e *Engine) selectEntryTool(tools []mcp.Tool) (string, error) {
	if e.entryTool != "" {
		for _, tool := range tools {
			if tool.Name == e.entryTool {
				return tool.Name, nil
			}
		}
		return "", fmt.Errorf("entry tool %q is not exposed by the runtime", e.entryTool)
	}

	var candidates []string
	for _, tool := range tools {
		if _, ok := tool.InputSchema.Properties["prompt"]; ok {
			candidates = append(candidates, tool.Name)
		}
	}
	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return "", fmt.Errorf("runtime exposes no tool accepting a prompt parameter")
	default:
		return "", fmt.Errorf("runtime exposes %d tools accepting a prompt parameter (%s); configure an entry tool",
			len(candidates), strings.Join(candidates, ", "))
	}
}

// notificationChunk extracts incremental agent output from a server
// notification. Runtimes forward partial model output as log-message
// notifications; progress notifications may carry a message as well.
func notificationChunk(notification mcp.JSONRPCNotification) (string, bool) {
	fields := notification.Params.AdditionalFields
	switch notification.Method {
	case notificationMessage:
		if data, ok := fields["data"].(string); ok && data != "" {
			return data, true
		}
	case notificationProgress:
		if msg, ok := fields["message"].(string); ok && msg != "" {
			return msg, true
		}
	}
	return "", false
}

func flattenText(contents []mcp.Content) string {
	var parts []string
	for _, content := range contents {
		if textContent, ok := mcp.AsTextContent(content); ok && textContent.Text != "" {
			parts = append(parts, textContent.Text)
		}
	}
	if len(parts) == 0 {
		return "no detail provided"
	}
	return strings.Join(parts, "; ")
}
