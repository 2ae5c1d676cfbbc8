package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/aretw0/callgate/pkg/domain"
)

// Loader implements ports.GraphLoader using an in-memory map of validated graphs.
type Loader struct {
	graphs map[string]*domain.Graph
}

// NewLoader creates a Loader serving the given graphs. Later graphs replace earlier ones with the same id.
func NewLoader(graphs ...*domain.Graph) *Loader {
	l := &Loader{graphs: make(map[string]*domain.Graph, len(graphs))}
	for _, g := range graphs {
		if g != nil {
			l.graphs[g.ID] = g
		}
	}
	return l
}

// LoadGraph returns the graph registered under id.
func (l *Loader) LoadGraph(_ context.Context, id string) (*domain.Graph, error) {
	g, ok := l.graphs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrGraphNotFound, id)
	}
	return g, nil
}

// ListGraphs returns all available graph ids.
func (l *Loader) ListGraphs(_ context.Context) ([]string, error) {
	keys := make([]string, 0, len(l.graphs))
	for k := range l.graphs {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
