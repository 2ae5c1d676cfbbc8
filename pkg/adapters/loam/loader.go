// Package loam loads dialogue graphs authored as Markdown documents in a Loam repository.
//
// Each document holds one graph in its front matter; the Markdown body is free-form
// writer notes and is ignored by the engine:
//
//	---
//	id: bugcall.stage1
//	nodes:
//	  - {id: ring, kind: media, clip: bugcall/ring.webm, fallback: 3s}
//	  - {id: who, kind: beat, text: "Who is this?"}
//	---
//	The first call. Keep the static beat short.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/callgate/internal/compiler"
	"github.com/aretw0/callgate/internal/dto"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/loam"
	"github.com/mitchellh/mapstructure"
)

// GraphMetadata is the front matter of a graph document.
// Nodes stay untyped here and are decoded by the loader, so YAML numbers and strings
// are accepted interchangeably for node fields.
type GraphMetadata struct {
	ID    string `json:"id" mapstructure:"id"`
	Start string `json:"start" mapstructure:"start"`
	Nodes []any  `json:"nodes" mapstructure:"nodes"`
}

// Loader adapts a Loam repository to ports.GraphLoader.
type Loader struct {
	Repo *loam.TypedRepository[GraphMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[GraphMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only repository at dir and wraps it.
func Open(dir string) (*Loader, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	repo, err := loam.Init(abs, loam.WithStrict(true), loam.WithReadOnly(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open loam repository: %w", err)
	}
	return New(loam.NewTypedRepository[GraphMetadata](repo)), nil
}

type entry struct {
	id    string
	docID string
	meta  GraphMetadata
}

func (l *Loader) entries(ctx context.Context) ([]entry, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	out := make([]entry, 0, len(docs))
	for _, doc := range docs {
		// The front matter id wins; otherwise the file name is the graph id.
		id := doc.Data.ID
		if id == "" {
			id = trimExtension(doc.ID)
		}
		if existing, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: graph '%s' is defined in both '%s' and '%s'", id, existing, doc.ID)
		}
		seen[id] = doc.ID
		out = append(out, entry{id: id, docID: doc.ID, meta: doc.Data})
	}
	return out, nil
}

// LoadGraph compiles the document declaring id.
func (l *Loader) LoadGraph(ctx context.Context, id string) (*domain.Graph, error) {
	entries, err := l.entries(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.id != id {
			continue
		}
		doc, err := toDocument(e.id, e.meta)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.docID, err)
		}
		g, err := compiler.Compile(doc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.docID, err)
		}
		return g, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrGraphNotFound, id)
}

// ListGraphs lists every graph id in the repository, sorted.
func (l *Loader) ListGraphs(ctx context.Context) ([]string, error) {
	entries, err := l.entries(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.id)
	}
	sort.Strings(ids)
	return ids, nil
}

func toDocument(id string, meta GraphMetadata) (dto.GraphDocument, error) {
	doc := dto.GraphDocument{ID: id, Start: meta.Start}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc.Nodes,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return doc, err
	}
	if err := dec.Decode(meta.Nodes); err != nil {
		return doc, fmt.Errorf("invalid nodes: %w", err)
	}
	return doc, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// Watch reports the id of every changed document until ctx is done.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- evt.ID:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
