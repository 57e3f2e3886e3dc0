// Package ast defines the data model shared by every downstream component:
// the parsed representation of a SourceUnit (nodes, edges, the line map, and
// the method index) that the CFG Builder, Path Enumerator, and Test
// Integrator all consume.
package ast

// EdgeLabel classifies a CfgEdge the way the upstream AST/CFG front end
// would tag it.
type EdgeLabel string

const (
	EdgePosNext        EdgeLabel = "pos_next"
	EdgeNegNext        EdgeLabel = "neg_next"
	EdgeCatchException EdgeLabel = "catch_exception"
	EdgeSyncNext       EdgeLabel = "sync_next"
	EdgePlain          EdgeLabel = "plain"
)

// EdgeNextLine builds the "next_line_N" label for a plain fall-through edge
// to line N, matching the label family from the data model.
func EdgeNextLine(n int) EdgeLabel {
	return EdgeLabel("next_line_" + itoa(n))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// SourceUnit is the class under test: an immutable input.
type SourceUnit struct {
	Path     string
	Text     string
	Language string
}

// AstNode is one statement-level node in the parsed source.
type AstNode struct {
	NodeID     int
	LineIndex  int // 1-based original source line
	Text       string
	Kind       string // e.g. "if_statement", "for_statement", "throw_statement", "return_statement", "method_declaration"
	BlockIndex int
}

// CfgEdge is a directed control-flow edge between two node ids.
type CfgEdge struct {
	Src   int
	Dst   int
	Label EdgeLabel
}

// MethodVisibility is the declared visibility of a method.
type MethodVisibility string

const (
	VisibilityPublic    MethodVisibility = "public"
	VisibilityProtected MethodVisibility = "protected"
	VisibilityPrivate   MethodVisibility = "private"
	VisibilityPackage   MethodVisibility = "package"
)

// Method is one method found in the SourceUnit, prior to method-local CFG
// construction (the CFG builder adds the synthetic exit and throw/inner-return stitching
// on top of this).
type Method struct {
	Name       string
	ClassName  string
	EntryID    int
	ReturnIDs  []int
	NodeIDs    []int // every node id textually inside the method body, in order
	Visibility MethodVisibility
	IsStatic   bool
	// Trivial methods (empty body, single-line getter/setter/is-boolean,
	// static main) are excluded from "testable" regardless of visibility.
	Trivial bool
}

// LineMap is the bijection-ish mapping between original source lines and
// parsed nodes. Comments and blank lines collapse, so it is partial on both
// sides but stable.
type LineMap struct {
	LineToNode map[int]int
	NodeToLine map[int][]int
}

// NewLineMap returns an empty, initialized LineMap.
func NewLineMap() *LineMap {
	return &LineMap{
		LineToNode: make(map[int]int),
		NodeToLine: make(map[int][]int),
	}
}

// Add records that node maps to original source line.
func (m *LineMap) Add(node, line int) {
	if _, ok := m.LineToNode[line]; !ok {
		m.LineToNode[line] = node
	}
	m.NodeToLine[node] = append(m.NodeToLine[node], line)
}

// LinesFor returns the original source lines a set of node ids touch.
func (m *LineMap) LinesFor(nodeIDs []int) []int {
	seen := make(map[int]struct{})
	var lines []int
	for _, id := range nodeIDs {
		for _, line := range m.NodeToLine[id] {
			if _, ok := seen[line]; !ok {
				seen[line] = struct{}{}
				lines = append(lines, line)
			}
		}
	}
	return lines
}

// ParsedUnit is the front end's output: every node and edge in the
// SourceUnit, the method index, and the line map. The front end shipped
// here (heuristic.go) is a lightweight, line-oriented stand-in for a full
// tree-sitter-based parser.
type ParsedUnit struct {
	Unit     SourceUnit
	Nodes    []AstNode
	Edges    []CfgEdge
	Methods  []Method
	LineMap  *LineMap
	Warnings []string
}

// NodeByID returns the node with the given id, or false if absent.
func (p *ParsedUnit) NodeByID(id int) (AstNode, bool) {
	for _, n := range p.Nodes {
		if n.NodeID == id {
			return n, true
		}
	}
	return AstNode{}, false
}

// FrontEnd parses a SourceUnit into nodes, edges, a method index and a line
// map. The canonical production front end is a tree-sitter-based parser
// treated as an external collaborator; HeuristicFrontEnd is the concrete
// implementation this repository ships.
type FrontEnd interface {
	Parse(unit SourceUnit) (*ParsedUnit, error)
}
