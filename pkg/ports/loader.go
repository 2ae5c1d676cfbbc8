package ports

import (
	"context"

	"github.com/aretw0/callgate/pkg/domain"
)

// GraphLoader defines how the engine retrieves dialogue graphs.
// This allows the authoring source (built-in, files, Loam) to be decoupled.
type GraphLoader interface {
	// LoadGraph returns a validated graph.
	// Returns domain.ErrGraphNotFound for unknown ids and *domain.ConfigError for invalid graphs.
	LoadGraph(ctx context.Context, id string) (*domain.Graph, error)

	// ListGraphs returns the ids of every graph the loader knows, sorted.
	// This is used by introspection tools ('callgate validate', 'callgate graph').
	ListGraphs(ctx context.Context) ([]string, error)
}
