package callgate

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/ports"
)

// Overlay returns a GraphLoader that looks graphs up in each loader in turn.
// Only domain.ErrGraphNotFound falls through to the next loader; any other error
// (a broken authored graph, for example) is returned as is. Nil loaders are skipped.
func Overlay(loaders ...ports.GraphLoader) ports.GraphLoader {
	var ls []ports.GraphLoader
	for _, l := range loaders {
		if l != nil {
			ls = append(ls, l)
		}
	}
	if len(ls) == 1 {
		return ls[0]
	}
	return overlay(ls)
}

type overlay []ports.GraphLoader

func (o overlay) LoadGraph(ctx context.Context, id string) (*domain.Graph, error) {
	for _, l := range o {
		g, err := l.LoadGraph(ctx, id)
		if err == nil {
			return g, nil
		}
		if !errors.Is(err, domain.ErrGraphNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrGraphNotFound, id)
}

func (o overlay) ListGraphs(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, l := range o {
		list, err := l.ListGraphs(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}
