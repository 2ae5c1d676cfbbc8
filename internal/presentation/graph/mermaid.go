package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/callgate/pkg/domain"
)

// GraphOverlay contains live call data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFor marks every chain node before current as visited.
// An empty current yields no overlay.
func OverlayFor(g *domain.Graph, current string) *GraphOverlay {
	if g == nil || current == "" {
		return nil
	}
	o := &GraphOverlay{CurrentNode: current}
	for _, id := range g.Chain() {
		if id == current {
			break
		}
		o.VisitedNodes = append(o.VisitedNodes, id)
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart for a dialogue graph.
// Shapes follow the node kind:
// - Start: ((Circle))
// - Media segment: [Rectangle]
// - Interactive beat: [/Parallelogram/], since it waits for the player
// Effects are annotated on the label, and the call end is drawn as a terminal node.
func GenerateMermaid(g *domain.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	ends := false
	for _, node := range g.Nodes() {
		safeID := sanitizeMermaidID(node.NodeID())

		opener, closer := "[", "]"
		switch {
		case node.NodeID() == g.Start:
			opener, closer = "((", "))"
		case node.Kind() == domain.KindBeat:
			opener, closer = "[/", "/]"
		}

		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label(node), closer))

		next := node.NextID()
		if next == "" {
			ends = true
			sb.WriteString(fmt.Sprintf("    %s --> hangup\n", safeID))
			continue
		}

		arrow := "-->"
		if node.Kind() == domain.KindBeat {
			arrow = `-- "continue" -->`
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", safeID, arrow, sanitizeMermaidID(next)))
	}
	if ends {
		sb.WriteString("    hangup(((\"hang up\")))\n")
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on both light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}

		if overlay.CurrentNode != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode)))
		}
	}

	return sb.String()
}

func label(node domain.Node) string {
	parts := []string{node.NodeID()}
	if m, ok := node.(domain.MediaSegment); ok && m.FallbackDelay > 0 {
		parts = append(parts, "⏱️ "+m.FallbackDelay.String())
	}
	fx := node.NodeEffects()
	if fx.Shake != nil {
		parts = append(parts, "shake")
	}
	if fx.Glitch {
		parts = append(parts, "glitch")
	}
	return strings.ReplaceAll(strings.Join(parts, " <br/> "), "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
