// Package cfgbuild turns the front end's global node/edge lists into
// per-method control-flow graphs: one synthetic exit per method, throws and
// inner returns stitched in, cyclomatic complexity computed on the result.
package cfgbuild

import (
	"fmt"

	"github.com/covergen/covergen/internal/ast"
	"github.com/covergen/covergen/internal/logger"
)

// MethodCFG is the method-local graph the Path Enumerator walks.
type MethodCFG struct {
	Name      string
	ClassName string
	EntryID   int
	// ExitID is the synthetic exit node, a fresh id not present in the
	// front end's node list.
	ExitID     int
	NodeIDs    []int // every node in the local graph, exit included
	Edges      []ast.CfgEdge
	Complexity int
	Warnings   []string

	unit *ast.ParsedUnit
}

// Node returns the front-end node for id, or false for the synthetic exit.
func (m *MethodCFG) Node(id int) (ast.AstNode, bool) {
	if id == m.ExitID {
		return ast.AstNode{}, false
	}
	return m.unit.NodeByID(id)
}

// Successors returns the outgoing edges of a node in the local graph.
func (m *MethodCFG) Successors(id int) []ast.CfgEdge {
	var out []ast.CfgEdge
	for _, e := range m.Edges {
		if e.Src == id {
			out = append(out, e)
		}
	}
	return out
}

// Builder constructs MethodCFGs for every testable method of a parsed unit.
type Builder struct {
	unit   *ast.ParsedUnit
	nextID int
}

// NewBuilder returns a Builder over one parsed SourceUnit. Synthetic exit
// ids are allocated above the unit's highest node id so they can never
// collide with a front-end node.
func NewBuilder(unit *ast.ParsedUnit) *Builder {
	maxID := 0
	for _, n := range unit.Nodes {
		if n.NodeID > maxID {
			maxID = n.NodeID
		}
	}
	return &Builder{unit: unit, nextID: maxID + 1}
}

// BuildAll builds a MethodCFG for every testable method. Methods whose
// resulting graph has complexity 0 are dropped; methods whose CFG could not
// be built at all land in the to-be-determined bucket, reported only for
// analytics.
func (b *Builder) BuildAll() ([]*MethodCFG, []string) {
	var out []*MethodCFG
	var undetermined []string
	for _, m := range b.unit.Methods {
		if !Testable(m) {
			continue
		}
		cfg, err := b.Build(m)
		if err != nil {
			undetermined = append(undetermined, m.Name)
			logger.Warn("cfgbuild: could not build CFG for %s: %v", m.Name, err)
			continue
		}
		if cfg.Complexity < 1 {
			continue
		}
		out = append(out, cfg)
	}
	return out, undetermined
}

// Testable reports whether a method is worth generating tests for:
// visibility is not private, and the body is non-trivial.
func Testable(m ast.Method) bool {
	return m.Visibility != ast.VisibilityPrivate && !m.Trivial
}

// Build constructs the method-local graph for one method.
func (b *Builder) Build(m ast.Method) (*MethodCFG, error) {
	if m.EntryID == 0 {
		return nil, fmt.Errorf("cfgbuild: method %s has no entry node", m.Name)
	}

	// Node id range [entry, max(return ids, body ids)].
	hi := m.EntryID
	for _, id := range m.ReturnIDs {
		if id > hi {
			hi = id
		}
	}
	for _, id := range m.NodeIDs {
		if id > hi {
			hi = id
		}
	}

	inRange := func(id int) bool { return id >= m.EntryID && id <= hi }

	cfg := &MethodCFG{
		Name:      m.Name,
		ClassName: m.ClassName,
		EntryID:   m.EntryID,
		ExitID:    b.nextID,
		unit:      b.unit,
	}
	b.nextID++

	nodeSet := make(map[int]struct{})
	for _, id := range m.NodeIDs {
		if inRange(id) {
			nodeSet[id] = struct{}{}
			cfg.NodeIDs = append(cfg.NodeIDs, id)
		}
	}
	if _, ok := nodeSet[m.EntryID]; !ok {
		nodeSet[m.EntryID] = struct{}{}
		cfg.NodeIDs = append([]int{m.EntryID}, cfg.NodeIDs...)
	}
	cfg.NodeIDs = append(cfg.NodeIDs, cfg.ExitID)

	// Restrict the global edge list to pairs inside the method.
	for _, e := range b.unit.Edges {
		if _, srcOK := nodeSet[e.Src]; !srcOK {
			continue
		}
		if _, dstOK := nodeSet[e.Dst]; !dstOK {
			continue
		}
		cfg.Edges = append(cfg.Edges, e)
	}

	// Every return flows to the synthetic exit.
	for _, id := range m.ReturnIDs {
		if _, ok := nodeSet[id]; ok {
			cfg.Edges = append(cfg.Edges, ast.CfgEdge{Src: id, Dst: cfg.ExitID, Label: ast.EdgePlain})
		}
	}

	b.stitchDanglingNodes(cfg, m, nodeSet)

	for _, id := range unreachableNodes(cfg) {
		w := fmt.Sprintf("node %d unreachable in method %s", id, m.Name)
		cfg.Warnings = append(cfg.Warnings, w)
		logger.Warn("cfgbuild: %s", w)
	}

	// Cyclomatic complexity |E| - |V| + 2 of the stitched graph.
	cfg.Complexity = len(cfg.Edges) - len(cfg.NodeIDs) + 2
	return cfg, nil
}

// stitchDanglingNodes handles nodes the edge restriction left hanging: a
// throw_statement with no successor goes straight to the synthetic exit; a
// method_declaration nested inside the body (lambda/inner method) is
// stitched to its textual predecessor, with its returns connected back.
func (b *Builder) stitchDanglingNodes(cfg *MethodCFG, m ast.Method, nodeSet map[int]struct{}) {
	hasSucc := make(map[int]bool)
	hasPred := make(map[int]bool)
	for _, e := range cfg.Edges {
		hasSucc[e.Src] = true
		hasPred[e.Dst] = true
	}

	for _, id := range cfg.NodeIDs {
		if id == cfg.ExitID || id == m.EntryID {
			continue
		}
		node, ok := b.unit.NodeByID(id)
		if !ok {
			continue
		}
		switch {
		case node.Kind == "throw_statement" && !hasSucc[id]:
			cfg.Edges = append(cfg.Edges, ast.CfgEdge{Src: id, Dst: cfg.ExitID, Label: ast.EdgePlain})
			hasSucc[id] = true

		case node.Kind == "method_declaration" && !hasPred[id] && !hasSucc[id]:
			// A nested declaration: connect the textual predecessor to it
			// and route its returns back to that predecessor so the outer
			// flow stays connected.
			pred := textualPredecessor(cfg.NodeIDs, id, cfg.ExitID)
			if pred == 0 {
				continue
			}
			cfg.Edges = append(cfg.Edges, ast.CfgEdge{Src: pred, Dst: id, Label: ast.EdgePlain})
			hasPred[id] = true
			for _, rid := range m.ReturnIDs {
				if rid > id {
					cfg.Edges = append(cfg.Edges, ast.CfgEdge{Src: rid, Dst: pred, Label: ast.EdgePlain})
					hasSucc[rid] = true
				}
			}
		}
	}
}

// textualPredecessor returns the node id immediately before id in the
// method's node order, skipping the synthetic exit.
func textualPredecessor(nodeIDs []int, id, exitID int) int {
	prev := 0
	for _, n := range nodeIDs {
		if n == id {
			return prev
		}
		if n != exitID {
			prev = n
		}
	}
	return 0
}

// unreachableNodes reports nodes with no path from the entry, the exit
// excluded from the walk's endpoint check.
func unreachableNodes(cfg *MethodCFG) []int {
	reached := make(map[int]bool)
	stack := []int{cfg.EntryID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reached[id] {
			continue
		}
		reached[id] = true
		for _, e := range cfg.Edges {
			if e.Src == id && !reached[e.Dst] {
				stack = append(stack, e.Dst)
			}
		}
	}
	var out []int
	for _, id := range cfg.NodeIDs {
		if !reached[id] {
			out = append(out, id)
		}
	}
	return out
}
