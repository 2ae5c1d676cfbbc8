package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/aretw0/callgate/internal/compiler"
	"github.com/aretw0/callgate/internal/presentation/graph"
	"github.com/aretw0/callgate/internal/validator"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/runner"
	"gopkg.in/yaml.v3"
)

// ListFlags prints every flag of the save, sorted by key.
func ListFlags(ctx context.Context, app *App, w io.Writer) error {
	snap, err := app.Store.Snapshot(ctx)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s = %s\n", k, snap[k])
	}
	return nil
}

// GetFlag prints one flag.
func GetFlag(ctx context.Context, app *App, w io.Writer, key string) error {
	v, err := app.Store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	fmt.Fprintln(w, v)
	return nil
}

// SetFlag writes one flag. "true" and "false" become booleans, anything else a string.
func SetFlag(ctx context.Context, app *App, key, raw string) error {
	clean, err := runner.SanitizeLine(raw)
	if err != nil {
		return fmt.Errorf("value rejected: %w", err)
	}
	return app.Store.Set(ctx, key, domain.ParseValue(clean))
}

// DeleteFlag removes one flag.
func DeleteFlag(ctx context.Context, app *App, key string) error {
	return app.Store.Delete(ctx, key)
}

// ResetProgress clears every completion and unlock flag so the calls ring again.
func ResetProgress(ctx context.Context, app *App) error {
	return app.Engine.ResetProgress(ctx)
}

// PrintStatus evaluates the stages once against the save and prints the result.
func PrintStatus(ctx context.Context, app *App, w io.Writer, asJSON bool) error {
	app.Engine.Advance(ctx, 0)
	st := app.Engine.Status(ctx)
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	runner.WriteStatus(w, st)
	return nil
}

// ExportGraph writes a graph as a Mermaid flowchart, YAML or JSON.
func ExportGraph(ctx context.Context, app *App, w io.Writer, id, format string) error {
	g, err := app.Engine.Graph(ctx, id)
	if err != nil {
		return err
	}
	switch format {
	case "mermaid", "":
		_, err = io.WriteString(w, graph.GenerateMermaid(g, nil))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(compiler.Decompile(g))
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(compiler.Decompile(g))
	}
	return fmt.Errorf("unknown graph format %q (want mermaid, yaml or json)", format)
}

// ErrInvalidGraphs is returned by Validate when at least one graph has problems.
var ErrInvalidGraphs = errors.New("invalid dialogue graphs")

// Validate checks every graph the engine can load and every graph a stage names.
func Validate(ctx context.Context, app *App, w io.Writer) error {
	reports, err := validator.Validate(ctx, app.Engine.Loader(), app.Engine.Stages())
	if err != nil {
		return err
	}
	for _, r := range reports {
		fmt.Fprintln(w, r)
	}
	if failed := validator.Failed(reports); len(failed) > 0 {
		return fmt.Errorf("%w: %d of %d", ErrInvalidGraphs, len(failed), len(reports))
	}
	return nil
}

// GraphWatcher is implemented by graph loaders that report document changes.
type GraphWatcher interface {
	Watch(ctx context.Context) (<-chan string, error)
}

// WatchValidate validates once, then again after every change to the authored graphs,
// until ctx is done. Changes arriving within settle of each other are validated once.
func WatchValidate(ctx context.Context, app *App, w io.Writer, settle time.Duration) error {
	watcher, ok := app.Graphs.(GraphWatcher)
	if !ok {
		return fmt.Errorf("no watchable graph directory configured")
	}
	changes, err := watcher.Watch(ctx)
	if err != nil {
		return err
	}

	report := func() {
		if err := Validate(ctx, app, w); err != nil {
			fmt.Fprintf(w, "! %v\n", err)
		}
		fmt.Fprintln(w, "watching for changes...")
	}
	report()

	for {
		select {
		case <-ctx.Done():
			return nil
		case name, ok := <-changes:
			if !ok {
				return nil
			}
			app.Logger.Debug("graph changed", "file", name)
			drain(ctx, changes, settle)
			report()
		}
	}
}

// drain swallows further changes until none arrives for settle.
func drain(ctx context.Context, changes <-chan string, settle time.Duration) {
	timer := time.NewTimer(settle)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			timer.Reset(settle)
		}
	}
}
