// Package mcptools connects to MCP tool servers, enumerates their
// tools and invokes them with schema-validated arguments.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/xeipuuv/gojsonschema"

	"github.com/strandworks/strand/pkg/config"
	"github.com/strandworks/strand/pkg/llm"
)

// Client is one live MCP server connection and the tools it exposed
// during initialization.
type Client struct {
	integration string
	mcpClient   *client.Client
	tools       []llm.Tool
	schemas     map[string]json.RawMessage
	logger      *slog.Logger
}

// Connect starts a server connection per its transport spec, runs the
// MCP initialize handshake and enumerates the server's tools.
func Connect(ctx context.Context, integration string, spec *config.ServerSpec, logger *slog.Logger) (*Client, error) {
	mcpTransport, err := buildTransport(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to build transport for %s: %w", integration, err)
	}

	mcpClient := client.NewClient(mcpTransport)

	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP client for %s: %w", integration, err)
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{Name: "strand", Version: "1.0.0"}
	initRequest.Params.Capabilities = mcp.ClientCapabilities{}

	serverInfo, err := mcpClient.Initialize(ctx, initRequest)
	if err != nil {
		_ = mcpClient.Close()

		return nil, fmt.Errorf("failed to initialize MCP session for %s: %w", integration, err)
	}

	connected := &Client{
		integration: integration,
		mcpClient:   mcpClient,
		schemas:     make(map[string]json.RawMessage),
		logger:      logger.With("integration", integration),
	}

	if serverInfo.Capabilities.Tools == nil {
		connected.logger.Warn("MCP server advertises no tool capability")

		return connected, nil
	}

	listResult, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		_ = mcpClient.Close()

		return nil, fmt.Errorf("failed to list tools for %s: %w", integration, err)
	}

	for _, tool := range listResult.Tools {
		schemaJSON, err := json.Marshal(tool.InputSchema)
		if err != nil {
			connected.logger.Warn("Skipping tool with unmarshalable schema", "tool", tool.Name)

			continue
		}

		schema := map[string]any{}
		if err := json.Unmarshal(schemaJSON, &schema); err != nil {
			connected.logger.Warn("Skipping tool with invalid schema", "tool", tool.Name)

			continue
		}

		connected.tools = append(connected.tools, llm.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
		connected.schemas[tool.Name] = schemaJSON
	}

	connected.logger.Info("Connected to MCP server", "tools", len(connected.tools))

	return connected, nil
}

func buildTransport(spec *config.ServerSpec) (transport.Interface, error) {
	switch spec.Transport {
	case "stdio":
		env := make([]string, 0, len(spec.Env))
		for key, value := range spec.Env {
			env = append(env, fmt.Sprintf("%s=%s", key, value))
		}

		return transport.NewStdio(spec.Command, env, spec.Args...), nil
	case "sse":
		options := []transport.ClientOption{}

		if spec.TokenEnv != "" {
			token := os.Getenv(spec.TokenEnv)
			if token == "" {
				return nil, fmt.Errorf("%w: %s", ErrMissingToken, spec.TokenEnv)
			}

			options = append(options, transport.WithHeaders(map[string]string{
				"Authorization": "Bearer " + token,
			}))
		}

		return transport.NewSSE(spec.URL, options...)
	default:
		return nil, fmt.Errorf("unsupported transport %q", spec.Transport)
	}
}

// Integration returns the integration this connection serves.
func (c *Client) Integration() string {
	return c.integration
}

// Tools returns the tools enumerated at connect time.
func (c *Client) Tools() []llm.Tool {
	return c.tools
}

// CallTool validates arguments against the tool's input schema and
// invokes it. Server-side tool errors come back as a non-nil error
// carrying the server's error text.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (string, error) {
	if err := c.validateArguments(name, arguments); err != nil {
		return "", err
	}

	request := mcp.CallToolRequest{}
	request.Params.Name = name
	request.Params.Arguments = arguments

	result, err := c.mcpClient.CallTool(ctx, request)
	if err != nil {
		return "", fmt.Errorf("tool call %s failed: %w", name, err)
	}

	content := flattenContent(result.Content)

	if result.IsError {
		return "", fmt.Errorf("tool %s returned an error: %s", name, content)
	}

	return content, nil
}

func (c *Client) validateArguments(name string, arguments map[string]any) error {
	schemaJSON, ok := c.schemas[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	documentJSON, err := json.Marshal(arguments)
	if err != nil {
		return fmt.Errorf("failed to encode arguments for %s: %w", name, err)
	}

	validation, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(documentJSON),
	)
	if err != nil {
		// Some servers publish schemas gojsonschema cannot compile;
		// let the server do its own validation in that case.
		c.logger.Debug("Skipping argument validation", "tool", name, "error", err)

		return nil
	}

	if !validation.Valid() {
		problems := make([]string, 0, len(validation.Errors()))
		for _, desc := range validation.Errors() {
			problems = append(problems, desc.String())
		}

		return fmt.Errorf("invalid arguments for %s: %s", name, strings.Join(problems, "; "))
	}

	return nil
}

func flattenContent(content []mcp.Content) string {
	parts := make([]string, 0, len(content))

	for _, item := range content {
		if text, ok := mcp.AsTextContent(item); ok {
			parts = append(parts, text.Text)
		}
	}

	return strings.Join(parts, "\n")
}

// Close shuts the underlying transport down.
func (c *Client) Close() error {
	return c.mcpClient.Close()
}
