// Package agent drives streaming invocations of a hosted conversational
// agent runtime over the MCP streamable-HTTP transport.
//
// # Key Components
//
//   - Factory: rebuilds the transport descriptor (endpoint URL plus bearer
//     auth header) before every attempt, so a refreshed token is always used
//   - Engine: opens the MCP session, discovers the runtime's tools, and
//     streams one conversational turn to completion
//   - Classifier: decides whether a failed attempt indicates an expired
//     credential
//   - Orchestrator: bounds recovery to exactly one refresh-and-retry per
//     logical request and delivers all outcomes on a single item stream
//   - Server: the runtime entrypoint, relaying invocation payloads to the
//     orchestrator and streaming items back as server-sent events
//   - Chat: an interactive prompt loop over the same orchestrator
//
// Failures never cross the package boundary as panics or abrupt stream
// truncation: the consumer always sees either data items followed by stream
// closure, or data items followed by exactly one error-tagged terminal item.
package agent
