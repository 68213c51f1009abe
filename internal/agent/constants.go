package agent

// endpointURLTemplate is the agent runtime invocation URL: region, the
// percent-encoded runtime ARN, and the endpoint qualifier.
const endpointURLTemplate = "https://bedrock-agentcore.%s.amazonaws.com/runtimes/%s/invocations?qualifier=%s"

// initFailurePrefix wraps every session-setup failure. The runtime rejects
// an expired bearer token at session open, so this prefix is what the
// default classifier looks for.
const initFailurePrefix = "client initialization failed"

// MCP protocol version used during the session handshake.
const protocolVersion = "2024-11-05"

// Types carried by the terminal error item of an output stream.
const (
	// itemTypeStreamError marks failures raised while streaming a request.
	itemTypeStreamError = "stream_error"

	// itemTypeEntrypointError marks failures raised before a request reaches
	// the orchestrator.
	itemTypeEntrypointError = "entrypoint_error"
)

// Notification methods that carry incremental agent output.
const (
	notificationMessage  = "notifications/message"
	notificationProgress = "notifications/progress"
)
