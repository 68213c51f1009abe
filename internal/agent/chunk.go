package agent

// StreamItem is one element of an invocation output stream: either an
// agent-produced data chunk or the single error-tagged terminal item.
type StreamItem struct {
	Data  string `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	Type  string `json:"type,omitempty"`
}

// DataItem wraps an agent-produced chunk.
func DataItem(data string) StreamItem {
	return StreamItem{Data: data}
}

// StreamErrorItem is the terminal item for a failure raised while streaming.
func StreamErrorItem(err error) StreamItem {
	return StreamItem{Error: err.Error(), Type: itemTypeStreamError}
}

// EntrypointErrorItem is the terminal item for a failure raised before the
// request reached the orchestrator.
func EntrypointErrorItem(err error) StreamItem {
	return StreamItem{Error: err.Error(), Type: itemTypeEntrypointError}
}

// IsError reports whether the item is an error-tagged terminal item.
func (i StreamItem) IsError() bool {
	return i.Type != ""
}
