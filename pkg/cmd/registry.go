package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/strandworks/strand/pkg/classifier"
	"github.com/strandworks/strand/pkg/config"
	"github.com/strandworks/strand/pkg/registry"
)

// NewCatalog loads the integration catalog from path, or the embedded
// default catalog when path is empty.
func NewCatalog(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}

	return config.Load(path)
}

// NewRegistry assembles the integration registry: a keyword classifier
// over the catalog (with an optional LLM fallback) plus MCP-backed tool
// loading, with configured servers connected up front.
func NewRegistry(ctx context.Context, logger *slog.Logger, catalog *config.Config, fallback classifier.FallbackModel) (*registry.Registry, error) {
	cls := classifier.New(catalog, classifier.DefaultThresholds(), fallback, logger)
	reg := registry.NewRegistry(catalog, cls, &registry.MCPConnector{Logger: logger}, logger)

	if err := reg.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize integration registry: %w", err)
	}

	return reg, nil
}
