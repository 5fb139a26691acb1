package mcptools

import "errors"

var (
	// ErrUnknownTool means the tool name is not present on this
	// connection.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrMissingToken means an SSE server needs a token that is not
	// set in the environment. The registry treats this as "connect
	// later", not as a startup failure.
	ErrMissingToken = errors.New("missing auth token")
)
