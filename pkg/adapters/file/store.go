// Package file persists flags in a JSON save file and loads authored graphs from a directory.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/callgate/internal/logging"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of file system events into one reload.
const DefaultDebounce = 500 * time.Millisecond

const saveVersion = 1

// Store implements ports.FlagStore and ports.Watchable over a single JSON save file.
//
// The save layout is {"version": 1, "flags": {...}}. Other top-level keys written by the
// host game are kept untouched on every write.
type Store struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.RWMutex
	loaded  bool
	flags   domain.Snapshot
	foreign map[string]json.RawMessage
	extra   map[string]json.RawMessage
	raw     []byte
}

// Option configures a Store.
type Option func(*Store)

// WithDebounce overrides DefaultDebounce for Watch.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) {
		s.debounce = d
	}
}

// WithLogger sets the logger used by Watch and for undecodable flags.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a store for the save at path. It must be loaded before use.
// If path is empty, it defaults to ".callgate/save.json".
func New(path string, opts ...Option) *Store {
	if path == "" {
		path = filepath.Join(".callgate", "save.json")
	}
	s := &Store{
		path:     path,
		debounce: DefaultDebounce,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the save file location.
func (s *Store) Path() string { return s.path }

// Load reads the save file. A missing file is an empty save.
func (s *Store) Load(ctx context.Context) error {
	_, err := s.reload()
	return err
}

// reload re-reads the file and reports whether its content changed.
func (s *Store) reload() (bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to read save file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded && bytes.Equal(data, s.raw) {
		return false, nil
	}

	doc, err := decodeSave(data)
	if err != nil {
		return false, err
	}
	for k := range doc.foreign {
		s.logger.Warn("skipping undecodable flag", "path", s.path, "key", k)
	}
	s.flags, s.foreign, s.extra, s.raw, s.loaded = doc.flags, doc.foreign, doc.extra, data, true
	return true, nil
}

// saveDoc is a decoded save file. Flags that are not a bool, string or number land in
// foreign and are written back verbatim.
type saveDoc struct {
	flags   domain.Snapshot
	foreign map[string]json.RawMessage
	extra   map[string]json.RawMessage
}

func decodeSave(data []byte) (saveDoc, error) {
	doc := saveDoc{
		flags:   make(domain.Snapshot),
		foreign: make(map[string]json.RawMessage),
		extra:   make(map[string]json.RawMessage),
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}

	if err := json.Unmarshal(data, &doc.extra); err != nil {
		return saveDoc{}, fmt.Errorf("failed to parse save file: %w", err)
	}
	if raw, ok := doc.extra["flags"]; ok {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return saveDoc{}, fmt.Errorf("failed to parse save flags: %w", err)
		}
		for k, field := range fields {
			var v domain.Value
			if err := json.Unmarshal(field, &v); err != nil {
				doc.foreign[k] = field
				continue
			}
			if !v.IsZero() {
				doc.flags[k] = v
			}
		}
		delete(doc.extra, "flags")
	}
	delete(doc.extra, "version")
	return doc, nil
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (domain.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded {
		return domain.Value{}, domain.ErrStoreNotLoaded
	}
	if raw, ok := s.foreign[key]; ok {
		return domain.Value{}, fmt.Errorf("flag %s holds an invalid value: %s", key, raw)
	}
	v, ok := s.flags[key]
	if !ok {
		return domain.Value{}, domain.ErrFlagNotFound
	}
	return v, nil
}

// Set writes value under key and saves the file before returning.
func (s *Store) Set(ctx context.Context, key string, value domain.Value) error {
	return s.mutate(func(flags domain.Snapshot, foreign map[string]json.RawMessage) {
		flags[key] = value
		delete(foreign, key)
	})
}

// Delete removes key and saves the file.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.mutate(func(flags domain.Snapshot, foreign map[string]json.RawMessage) {
		delete(flags, key)
		delete(foreign, key)
	})
}

// Snapshot returns a copy of every flag.
func (s *Store) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded {
		return nil, domain.ErrStoreNotLoaded
	}
	return s.flags.Clone(), nil
}

func (s *Store) mutate(fn func(domain.Snapshot, map[string]json.RawMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return domain.ErrStoreNotLoaded
	}

	next := s.flags.Clone()
	foreign := make(map[string]json.RawMessage, len(s.foreign))
	for k, raw := range s.foreign {
		foreign[k] = raw
	}
	fn(next, foreign)

	data, err := encodeSave(next, foreign, s.extra)
	if err != nil {
		return err
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	s.flags, s.foreign, s.raw = next, foreign, data
	return nil
}

func encodeSave(flags domain.Snapshot, foreign, extra map[string]json.RawMessage) ([]byte, error) {
	fields := make(map[string]any, len(flags)+len(foreign))
	for k, raw := range foreign {
		fields[k] = raw
	}
	for k, v := range flags {
		fields[k] = v
	}

	doc := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		doc[k] = v
	}
	doc["version"] = saveVersion
	doc["flags"] = fields

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal save: %w", err)
	}
	return append(data, '\n'), nil
}

// writeAtomic writes to a temporary file in the same directory, syncs it, then renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure save directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace save file: %w", err)
	}
	return nil
}

// Watch signals whenever another process rewrites the save with different content.
// Writes made through this Store do not signal. The channel is closed when ctx is done.
func (s *Store) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	// The directory is watched so atomic renames (ours and other editors') are seen.
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to ensure save directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	out := make(chan struct{}, 1)
	changed := make(chan struct{}, 1)
	target := filepath.Clean(s.path)

	go func() {
		defer close(out)
		defer watcher.Close()

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(s.debounce, func() {
					select {
					case changed <- struct{}{}:
					default:
					}
				})
			case <-changed:
				ok, err := s.reload()
				if err != nil {
					s.logger.Warn("save reload failed", "path", s.path, "err", err)
					continue
				}
				if !ok {
					continue
				}
				s.logger.Debug("save changed on disk", "path", s.path)
				select {
				case out <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("save watcher error", "err", err)
			}
		}
	}()

	return out, nil
}
