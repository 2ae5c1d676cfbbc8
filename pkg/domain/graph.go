package domain

import (
	"fmt"
	"sort"
)

// Graph is a forward-only dialogue graph. Build it with NewGraph; the zero value is unusable.
type Graph struct {
	ID    string
	Start string

	nodes map[string]Node
	order []string
}

// NewGraph assembles and validates a graph.
// Any configuration issue (duplicate ids, dangling next references, missing start node, cycles)
// makes the whole graph invalid: it returns nil and a *ConfigError listing every issue found.
func NewGraph(id, start string, nodes ...Node) (*Graph, error) {
	g := &Graph{
		ID:    id,
		Start: start,
		nodes: make(map[string]Node, len(nodes)),
	}
	cfg := &ConfigError{GraphID: id}

	for _, n := range nodes {
		if n == nil || n.NodeID() == "" {
			cfg.add(IssueEmptyID, "", "node without id")
			continue
		}
		nid := n.NodeID()
		if _, exists := g.nodes[nid]; exists {
			cfg.add(IssueDuplicate, nid, "node id defined more than once")
			continue
		}
		g.nodes[nid] = n
		g.order = append(g.order, nid)
	}

	if start == "" {
		cfg.add(IssueMissingStart, "", "graph has no start node")
	} else if _, ok := g.nodes[start]; !ok {
		cfg.add(IssueMissingStart, start, "start node not found")
	}

	for _, nid := range g.order {
		next := g.nodes[nid].NextID()
		if next == "" {
			continue
		}
		if _, ok := g.nodes[next]; !ok {
			cfg.add(IssueDangling, nid, fmt.Sprintf("next %q does not exist", next))
		}
	}

	// Only walk for cycles when every edge resolves, otherwise the walk is meaningless.
	if !cfg.Has(IssueDangling) {
		for _, nid := range g.cycleMembers() {
			cfg.add(IssueCycle, nid, "node is part of a cycle")
		}
	}

	if len(cfg.Issues) > 0 {
		return nil, cfg
	}
	return g, nil
}

// cycleMembers returns the ids of nodes that lie on a cycle. Each node has a single
// outgoing edge, so a walk either terminates or revisits a node on its own path.
func (g *Graph) cycleMembers() []string {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[string]int, len(g.nodes))
	inCycle := make(map[string]bool)

	for _, origin := range g.order {
		if state[origin] != unvisited {
			continue
		}
		var path []string
		cur := origin
		for cur != "" && state[cur] == unvisited {
			state[cur] = onPath
			path = append(path, cur)
			cur = g.nodes[cur].NextID()
		}
		if cur != "" && state[cur] == onPath {
			mark := false
			for _, p := range path {
				if p == cur {
					mark = true
				}
				if mark {
					inCycle[p] = true
				}
			}
		}
		for _, p := range path {
			state[p] = done
		}
	}

	out := make([]string, 0, len(inCycle))
	for _, nid := range g.order {
		if inCycle[nid] {
			out = append(out, nid)
		}
	}
	return out
}

// Node looks a node up by exact id.
func (g *Graph) Node(id string) (Node, bool) {
	if g == nil {
		return nil, false
	}
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns every node in definition order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.order) }

// Chain returns the static next-chain starting at the start node.
func (g *Graph) Chain() []string {
	var chain []string
	seen := make(map[string]bool)
	for cur := g.Start; cur != "" && !seen[cur]; {
		n, ok := g.nodes[cur]
		if !ok {
			break
		}
		seen[cur] = true
		chain = append(chain, cur)
		cur = n.NextID()
	}
	return chain
}

// Unreachable lists nodes that cannot be reached from the start node, sorted by id.
func (g *Graph) Unreachable() []string {
	reach := make(map[string]bool)
	for _, id := range g.Chain() {
		reach[id] = true
	}
	var out []string
	for _, id := range g.order {
		if !reach[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
