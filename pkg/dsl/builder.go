package dsl

import (
	"fmt"

	"github.com/aretw0/callgate/pkg/adapters/memory"
	"github.com/aretw0/callgate/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	id    string
	start string
	nodes []*NodeBuilder
}

// New creates a new graph builder.
func New(graphID string) *Builder {
	return &Builder{id: graphID}
}

// Start overrides the start node. By default the first declared node starts the graph.
func (b *Builder) Start(id string) *Builder {
	b.start = id
	return b
}

// Media declares a media segment.
// Declaring an id twice keeps both; Build reports the duplicate.
func (b *Builder) Media(id string) *NodeBuilder {
	return b.add(id, domain.KindMedia)
}

// Beat declares an interactive beat.
func (b *Builder) Beat(id string) *NodeBuilder {
	return b.add(id, domain.KindBeat)
}

func (b *Builder) add(id string, kind domain.NodeKind) *NodeBuilder {
	nb := &NodeBuilder{id: id, kind: kind}
	b.nodes = append(b.nodes, nb)
	return nb
}

// Build links and validates the graph.
func (b *Builder) Build() (*domain.Graph, error) {
	start := b.start
	if start == "" && len(b.nodes) > 0 {
		start = b.nodes[0].id
	}

	nodes := make([]domain.Node, 0, len(b.nodes))
	for i, nb := range b.nodes {
		next := nb.next
		if !nb.explicit && i+1 < len(b.nodes) {
			next = b.nodes[i+1].id
		}
		nodes = append(nodes, nb.build(next))
	}

	g, err := domain.NewGraph(b.id, start, nodes...)
	if err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}
	return g, nil
}

// MustBuild is Build for graphs known to be valid at compile time. It panics on error.
func (b *Builder) MustBuild() *domain.Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}

// Loader builds several graphs into a memory loader.
func Loader(builders ...*Builder) (*memory.Loader, error) {
	graphs := make([]*domain.Graph, 0, len(builders))
	for _, b := range builders {
		g, err := b.Build()
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, g)
	}
	return memory.NewLoader(graphs...), nil
}
