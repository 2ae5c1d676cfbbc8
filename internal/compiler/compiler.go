// Package compiler turns authored graph documents into validated dialogue graphs.
package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/callgate/internal/dto"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/dsl"
	"gopkg.in/yaml.v3"
)

// Parse decodes a graph document. The format is picked from the file extension:
// ".json" is JSON, anything else is YAML.
func Parse(name string, data []byte) (dto.GraphDocument, error) {
	var doc dto.GraphDocument
	if strings.EqualFold(filepath.Ext(name), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return doc, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		return doc, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return doc, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return doc, nil
}

// Compile builds a graph from a document. Field problems (unknown kinds, bad durations)
// and structural problems are both reported as a *domain.ConfigError.
func Compile(doc dto.GraphDocument) (*domain.Graph, error) {
	cfgErr := &domain.ConfigError{GraphID: doc.ID}
	invalid := func(nodeID, format string, args ...any) {
		cfgErr.Issues = append(cfgErr.Issues, domain.ConfigIssue{
			Kind:   domain.IssueInvalidField,
			NodeID: nodeID,
			Detail: fmt.Sprintf(format, args...),
		})
	}
	duration := func(nodeID, field, raw string) time.Duration {
		if raw == "" {
			return 0
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			invalid(nodeID, "%s: invalid duration %q", field, raw)
			return 0
		}
		return d
	}

	if doc.ID == "" {
		invalid("", "graph has no id")
	}

	b := dsl.New(doc.ID)
	if doc.Start != "" {
		b.Start(doc.Start)
	}

	for _, n := range doc.Nodes {
		var nb *dsl.NodeBuilder
		switch domain.NodeKind(strings.ToLower(n.Kind)) {
		case domain.KindMedia:
			nb = b.Media(n.ID).
				Clip(n.Clip).
				Fallback(duration(n.ID, "fallback", n.Fallback)).
				Hold(duration(n.ID, "hold", n.Hold)).
				Caption(n.Caption)
		case domain.KindBeat:
			nb = b.Beat(n.ID).Image(n.Image).Text(n.Text)
		default:
			invalid(n.ID, "unknown kind %q (want media or beat)", n.Kind)
			continue
		}

		if n.Shake != nil {
			if n.Shake.Intensity < 0 || n.Shake.Intensity > 1 {
				invalid(n.ID, "shake intensity %v is outside [0, 1]", n.Shake.Intensity)
			}
			nb.Shake(n.Shake.Intensity, duration(n.ID, "shake.duration", n.Shake.Duration))
		}
		if n.Glitch {
			nb.Glitch()
		}

		switch {
		case n.End && n.Next != "":
			invalid(n.ID, "end and next are mutually exclusive")
		case n.End:
			nb.Terminal()
		case n.Next != "":
			nb.Go(n.Next)
		}
	}

	if len(cfgErr.Issues) > 0 {
		return nil, cfgErr
	}
	return b.Build()
}

// CompileBytes parses and compiles one document.
func CompileBytes(name string, data []byte) (*domain.Graph, error) {
	doc, err := Parse(name, data)
	if err != nil {
		return nil, err
	}
	return Compile(doc)
}

// Decompile renders a graph back into a document with every link explicit.
// Built-in graphs are exported this way as starting points for authored ones.
func Decompile(g *domain.Graph) dto.GraphDocument {
	doc := dto.GraphDocument{ID: g.ID, Start: g.Start}
	for _, n := range g.Nodes() {
		nd := dto.NodeDocument{ID: n.NodeID(), Kind: string(n.Kind()), Next: n.NextID(), End: n.NextID() == ""}
		switch v := n.(type) {
		case domain.MediaSegment:
			nd.Clip = v.Clip
			nd.Fallback = formatDuration(v.FallbackDelay)
			nd.Hold = formatDuration(v.Hold)
			nd.Caption = v.Caption
		case domain.InteractiveBeat:
			nd.Image = v.Image
			nd.Text = v.Text
		}
		fx := n.NodeEffects()
		if fx.Shake != nil {
			nd.Shake = &dto.ShakeDocument{Intensity: fx.Shake.Intensity, Duration: formatDuration(fx.Shake.Duration)}
		}
		nd.Glitch = fx.Glitch
		doc.Nodes = append(doc.Nodes, nd)
	}
	return doc
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}
