package memory

import (
	"sort"
	"sync"
)

// Windows is an in-process window owner: a set of open window or modal names.
// It stands in for the desktop shell in tooling and tests. Safe for concurrent use.
type Windows struct {
	mu   sync.RWMutex
	open map[string]struct{}
}

// NewWindows creates an owner with no open windows.
func NewWindows() *Windows {
	return &Windows{open: make(map[string]struct{})}
}

// Open marks a window as open. Opening an open window is a no-op.
func (w *Windows) Open(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.open[name] = struct{}{}
}

// Close marks a window as closed.
func (w *Windows) Close(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.open, name)
}

// CloseAll closes every window.
func (w *Windows) CloseAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	clear(w.open)
}

// IsAnyWindowOpen implements ports.WindowOwner.
func (w *Windows) IsAnyWindowOpen() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.open) > 0
}

// List returns the open window names, sorted.
func (w *Windows) List() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.open))
	for k := range w.open {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
