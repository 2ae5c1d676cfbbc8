package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/callgate/internal/compiler"
	"github.com/aretw0/callgate/internal/dto"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/fsnotify/fsnotify"
)

var graphExtensions = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// Loader implements ports.GraphLoader over a directory of authored graph documents.
// Each *.yaml, *.yml or *.json file holds one graph, identified by its "id" field.
// The directory is read on every call so edits show up without a restart.
type Loader struct {
	dir string
}

// NewLoader creates a loader for dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// LoadGraph compiles the document whose id matches.
func (l *Loader) LoadGraph(ctx context.Context, id string) (*domain.Graph, error) {
	files, err := l.files()
	if err != nil {
		return nil, err
	}
	for _, path := range files {
		doc, err := l.parse(path)
		if err != nil {
			return nil, err
		}
		if doc.ID != id {
			continue
		}
		g, err := compiler.Compile(doc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		return g, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrGraphNotFound, id)
}

// ListGraphs returns the ids declared by every document in the directory.
func (l *Loader) ListGraphs(ctx context.Context) ([]string, error) {
	files, err := l.files()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(files))
	seen := make(map[string]string)
	for _, path := range files {
		doc, err := l.parse(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[doc.ID]; dup {
			return nil, fmt.Errorf("graph %q is declared in both %s and %s", doc.ID, filepath.Base(prev), filepath.Base(path))
		}
		seen[doc.ID] = path
		ids = append(ids, doc.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (l *Loader) files() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !graphExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		files = append(files, filepath.Join(l.dir, entry.Name()))
	}
	return files, nil
}

func (l *Loader) parse(path string) (dto.GraphDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return dto.GraphDocument{}, fmt.Errorf("failed to read graph file: %w", err)
	}
	return compiler.Parse(filepath.Base(path), data)
}

// Watch reports the base name of every graph document that is written, created, renamed
// or removed in the directory until ctx is done.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(l.dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", l.dir, err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op == fsnotify.Chmod || !graphExtensions[strings.ToLower(filepath.Ext(event.Name))] {
					continue
				}
				select {
				case ch <- filepath.Base(event.Name):
				case <-ctx.Done():
					return
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return ch, nil
}
