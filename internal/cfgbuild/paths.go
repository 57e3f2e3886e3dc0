package cfgbuild

import (
	"fmt"
	"strings"
	"time"

	"github.com/covergen/covergen/internal/ast"
	"github.com/covergen/covergen/internal/logger"
)

// Path is one entry-to-exit walk through a MethodCFG.
type Path struct {
	MethodName string
	Nodes      []int
	// Label identifies the path across iterations: method_entry_index.
	Label string
	// ConditionTrace is the human-readable branch narrative the Prompt
	// Builder embeds verbatim.
	ConditionTrace string

	// Derived by the coverage joiner each iteration.
	Lines       []int
	MissedValue int
}

// EnumeratePaths runs the bounded breadth-first path search from the method
// entry to the synthetic exit. A candidate is kept iff it introduces at
// least one edge no previous candidate visited; the search stops once every
// edge has been visited or the timeout elapses, in which case the partial
// list is returned.
func EnumeratePaths(cfg *MethodCFG, timeout time.Duration) []Path {
	deadline := time.Now().Add(timeout)

	type walk struct {
		nodes []int
		edges map[edgeKey]struct{}
	}

	totalEdges := make(map[edgeKey]struct{}, len(cfg.Edges))
	for _, e := range cfg.Edges {
		totalEdges[keyOf(e)] = struct{}{}
	}

	visited := make(map[edgeKey]struct{})
	var candidates []walk

	queue := []walk{{nodes: []int{cfg.EntryID}, edges: map[edgeKey]struct{}{}}}
	for len(queue) > 0 && len(visited) < len(totalEdges) {
		if time.Now().After(deadline) {
			logger.Warn("cfgbuild: path enumeration for %s timed out after %s, returning %d candidates",
				cfg.Name, timeout, len(candidates))
			break
		}

		w := queue[0]
		queue = queue[1:]
		tail := w.nodes[len(w.nodes)-1]

		if tail == cfg.ExitID {
			fresh := false
			for k := range w.edges {
				if _, seen := visited[k]; !seen {
					fresh = true
					visited[k] = struct{}{}
				}
			}
			if fresh {
				candidates = append(candidates, w)
			}
			continue
		}

		for _, e := range cfg.Successors(tail) {
			k := keyOf(e)
			// An edge taken twice within one walk adds nothing and would
			// let loops spin the queue forever.
			if _, dup := w.edges[k]; dup {
				continue
			}
			next := walk{
				nodes: append(append([]int(nil), w.nodes...), e.Dst),
				edges: make(map[edgeKey]struct{}, len(w.edges)+1),
			}
			for ek := range w.edges {
				next.edges[ek] = struct{}{}
			}
			next.edges[k] = struct{}{}
			queue = append(queue, next)
		}
	}

	// Independent-path post-filter: in discovery order, keep a candidate
	// iff it contributes an edge not yet covered by kept paths.
	kept := make(map[edgeKey]struct{})
	var out []Path
	for _, w := range candidates {
		fresh := false
		for k := range w.edges {
			if _, ok := kept[k]; !ok {
				fresh = true
				break
			}
		}
		if !fresh {
			continue
		}
		for k := range w.edges {
			kept[k] = struct{}{}
		}
		p := Path{
			MethodName:     cfg.Name,
			Nodes:          w.nodes,
			Label:          fmt.Sprintf("%s_%d_%d", cfg.Name, cfg.EntryID, len(out)),
			ConditionTrace: conditionTrace(cfg, w.nodes),
		}
		out = append(out, p)
	}
	return out
}

type edgeKey struct {
	src, dst int
	label    ast.EdgeLabel
}

func keyOf(e ast.CfgEdge) edgeKey {
	return edgeKey{src: e.Src, dst: e.Dst, label: e.Label}
}

// conditionTrace renders the branch decisions along a path: conditional
// headers annotate the truth value the taken edge implies, other nodes
// contribute their statement text.
func conditionTrace(cfg *MethodCFG, nodes []int) string {
	var parts []string
	for i, id := range nodes {
		node, ok := cfg.Node(id)
		if !ok {
			continue // synthetic exit
		}
		text := strings.TrimSuffix(strings.TrimSpace(node.Text), "{")
		text = strings.TrimSpace(text)
		switch node.Kind {
		case "if_statement", "for_statement", "while_statement":
			taken := takenLabel(cfg, nodes, i)
			switch taken {
			case ast.EdgePosNext:
				parts = append(parts, fmt.Sprintf("%s [true]", text))
			case ast.EdgeNegNext:
				parts = append(parts, fmt.Sprintf("%s [false]", text))
			default:
				parts = append(parts, text)
			}
		case "method_declaration":
			// Entry node; the method name alone carries no branch info.
		default:
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " -> ")
}

// takenLabel finds the label of the edge the path follows out of nodes[i].
func takenLabel(cfg *MethodCFG, nodes []int, i int) ast.EdgeLabel {
	if i+1 >= len(nodes) {
		return ""
	}
	for _, e := range cfg.Edges {
		if e.Src == nodes[i] && e.Dst == nodes[i+1] {
			return e.Label
		}
	}
	return ""
}
