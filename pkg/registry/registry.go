// Package registry owns the integration catalog at runtime: it
// connects to the tool servers behind each integration, maintains the
// tool-to-integration index, and serves filtered toolsets plus prompt
// hints to the workflow engine.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/strandworks/strand/pkg/classifier"
	"github.com/strandworks/strand/pkg/config"
	"github.com/strandworks/strand/pkg/llm"
	"github.com/strandworks/strand/pkg/mcptools"
)

// ErrToolNotAvailable means no connected integration exposes the
// requested tool.
var ErrToolNotAvailable = errors.New("tool not available")

// Connection is one live tool-server connection.
type Connection interface {
	Tools() []llm.Tool
	CallTool(ctx context.Context, name string, arguments map[string]any) (string, error)
	Close() error
}

// Connector dials the server behind an integration.
type Connector interface {
	Connect(ctx context.Context, integration string, spec *config.ServerSpec) (Connection, error)
}

// MCPConnector is the production Connector backed by MCP transports.
type MCPConnector struct {
	Logger *slog.Logger
}

func (c *MCPConnector) Connect(ctx context.Context, integration string, spec *config.ServerSpec) (Connection, error) {
	return mcptools.Connect(ctx, integration, spec, c.Logger)
}

// Registry is a process-wide object created once at startup; tool
// discovery costs seconds, so it is reused across requests. Incremental
// loads mutate it append-only under the lock, deduplicated by tool
// name, so concurrent loads converge.
type Registry struct {
	catalog    *config.Config
	classifier *classifier.IntegrationClassifier
	connector  Connector
	logger     *slog.Logger

	mu                 sync.RWMutex
	tools              map[string]llm.Tool
	toolIntegration    map[string]string
	toolsByIntegration map[string][]string
	connections        map[string]Connection
}

func NewRegistry(catalog *config.Config, cls *classifier.IntegrationClassifier, connector Connector, logger *slog.Logger) *Registry {
	registry := &Registry{
		catalog:            catalog,
		classifier:         cls,
		connector:          connector,
		logger:             logger,
		tools:              make(map[string]llm.Tool),
		toolIntegration:    make(map[string]string),
		toolsByIntegration: make(map[string][]string),
		connections:        make(map[string]Connection),
	}

	// Reverse lookup from explicit config works even before the
	// owning server is connected; incremental loading depends on it.
	for name, integration := range catalog.Integrations {
		for _, toolName := range integration.ToolNames {
			registry.toolIntegration[toolName] = name
		}
	}

	return registry
}

// Initialize connects every configured server. Servers whose auth
// token is not yet available are skipped, not failed: they can be
// loaded incrementally once the token shows up.
func (r *Registry) Initialize(ctx context.Context) error {
	names := r.catalog.Names()
	sort.Strings(names)

	for _, name := range names {
		integration := r.catalog.Integrations[name]
		if integration.Server == nil {
			continue
		}

		if _, err := r.LoadIntegration(ctx, name); err != nil {
			if errors.Is(err, mcptools.ErrMissingToken) {
				r.logger.Info("Deferring integration until its token is available", "integration", name)

				continue
			}

			r.logger.Error("Failed to connect integration", "integration", name, "error", err)
		}
	}

	return nil
}

// LoadIntegration connects one integration's server and merges its
// tools into the index. It is idempotent: an already-connected
// integration reports zero newly added tools.
func (r *Registry) LoadIntegration(ctx context.Context, name string) (int, error) {
	integration, ok := r.catalog.Integration(name)
	if !ok {
		return 0, fmt.Errorf("unknown integration %q", name)
	}

	if integration.Server == nil {
		return 0, fmt.Errorf("integration %q has no server configured", name)
	}

	r.mu.RLock()
	_, connected := r.connections[name]
	r.mu.RUnlock()

	if connected {
		return 0, nil
	}

	connection, err := r.connector.Connect(ctx, name, integration.Server)
	if err != nil {
		return 0, fmt.Errorf("failed to load integration %q: %w", name, err)
	}

	allowed := make(map[string]struct{}, len(integration.ToolNames))
	for _, toolName := range integration.ToolNames {
		allowed[toolName] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, raced := r.connections[name]; raced {
		_ = connection.Close()

		return 0, nil
	}

	r.connections[name] = connection
	added := 0

	for _, tool := range connection.Tools() {
		if len(allowed) > 0 {
			if _, ok := allowed[tool.Name]; !ok {
				continue
			}
		}

		if _, dup := r.tools[tool.Name]; dup {
			continue
		}

		r.tools[tool.Name] = tool
		r.toolIntegration[tool.Name] = name
		r.toolsByIntegration[name] = append(r.toolsByIntegration[name], tool.Name)
		added++
	}

	r.logger.Info("Loaded integration", "integration", name, "tools_added", added)

	return added, nil
}

// Toolset returns the tools belonging to the named integrations. When
// the names match nothing it falls back to every known tool:
// over-provisioning beats silently handing the executor zero
// capability.
func (r *Registry) Toolset(names []string) []llm.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	selected := make([]llm.Tool, 0)

	for _, name := range names {
		for _, toolName := range r.toolsByIntegration[name] {
			selected = append(selected, r.tools[toolName])
		}
	}

	if len(selected) == 0 {
		return r.allToolsLocked()
	}

	return selected
}

// AllTools returns every discovered tool.
func (r *Registry) AllTools() []llm.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.allToolsLocked()
}

func (r *Registry) allToolsLocked() []llm.Tool {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}

	sort.Strings(names)

	all := make([]llm.Tool, 0, len(names))
	for _, name := range names {
		all = append(all, r.tools[name])
	}

	return all
}

// IntegrationForTool resolves which integration owns a tool name,
// consulting both discovered tools and the static config mapping.
func (r *Registry) IntegrationForTool(toolName string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	integration, ok := r.toolIntegration[toolName]

	return integration, ok
}

// LoadedIntegrations lists integrations with a live connection.
func (r *Registry) LoadedIntegrations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.connections))
	for name := range r.connections {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// CallTool routes a tool invocation to the connection that owns it.
func (r *Registry) CallTool(ctx context.Context, toolName string, arguments map[string]any) (string, error) {
	r.mu.RLock()
	integration, known := r.toolIntegration[toolName]
	connection, connected := r.connections[integration]
	r.mu.RUnlock()

	if !known || !connected {
		return "", fmt.Errorf("%w: %s", ErrToolNotAvailable, toolName)
	}

	return connection.CallTool(ctx, toolName, arguments)
}

// Classify delegates to the two-phase classifier.
func (r *Registry) Classify(ctx context.Context, request string) classifier.Result {
	return r.classifier.ClassifyWithFallback(ctx, request)
}

// Integration exposes the static catalog entry.
func (r *Registry) Integration(name string) (*config.Integration, bool) {
	return r.catalog.Integration(name)
}

// Hints concatenates the non-empty hint strings of the requested
// integrations for one prompt phase ("planner" or "executor").
func (r *Registry) Hints(names []string, phase string) string {
	hints := make([]string, 0, len(names))

	for _, name := range names {
		integration, ok := r.catalog.Integration(name)
		if !ok {
			continue
		}

		hint := integration.PlannerHints
		if phase == "executor" {
			hint = integration.ExecutorHints
		}

		if hint != "" {
			hints = append(hints, hint)
		}
	}

	if len(hints) == 0 {
		return ""
	}

	return "INTEGRATION-SPECIFIC GUIDELINES:\n" + strings.Join(hints, "\n")
}

// Close shuts down every live connection.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error

	for name, connection := range r.connections {
		if err := connection.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", name, err))
		}

		delete(r.connections, name)
	}

	return errors.Join(errs...)
}
