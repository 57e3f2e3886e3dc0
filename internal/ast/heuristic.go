package ast

import (
	"regexp"
	"strings"
)

// HeuristicFrontEnd is a line-oriented, brace-structured stand-in for a
// full tree-sitter-based AST/CFG front end. It supports the C-family
// method/block shape (Java,
// C#, C/C++-like bodies): method declarations, if/else chains, for/while
// loops, try/catch, and synchronized blocks.
type HeuristicFrontEnd struct{}

// NewHeuristicFrontEnd returns the default front end implementation.
func NewHeuristicFrontEnd() *HeuristicFrontEnd {
	return &HeuristicFrontEnd{}
}

var (
	methodDeclRe = regexp.MustCompile(`^(?:(public|protected|private)\s+)?(?:static\s+)?(?:final\s+)?(?:synchronized\s+)?(?:abstract\s+)?[\w<>\[\],.\s?]+\s+(\w+)\s*\(([^)]*)\)\s*(?:throws\s+[\w,.\s]+)?\s*\{?\s*$`)
	classDeclRe  = regexp.MustCompile(`^(?:(public|protected|private)\s+)?(?:abstract\s+|final\s+)*class\s+(\w+)`)
	ifRe         = regexp.MustCompile(`^(?:\}\s*else\s+)?if\s*\(`)
	elseIfRe     = regexp.MustCompile(`^\}\s*else\s+if\s*\(`)
	elseRe       = regexp.MustCompile(`^\}\s*else\b`)
	forRe        = regexp.MustCompile(`^for\s*\(`)
	whileRe      = regexp.MustCompile(`^while\s*\(`)
	tryRe        = regexp.MustCompile(`^try\b`)
	catchRe      = regexp.MustCompile(`^\}\s*catch\s*\(`)
	syncRe       = regexp.MustCompile(`^synchronized\s*\(`)
	throwRe      = regexp.MustCompile(`^throw\b`)
	returnRe     = regexp.MustCompile(`^return\b`)
)

type codeLine struct {
	lineNo int
	text   string
}

// stripComments removes // line comments and /* ... */ block comments
// (which may span lines), returning one entry per non-blank resulting line.
func stripComments(src string) []codeLine {
	rawLines := strings.Split(src, "\n")
	var out []codeLine
	inBlock := false
	for i, raw := range rawLines {
		line := raw
		if inBlock {
			if idx := strings.Index(line, "*/"); idx >= 0 {
				line = line[idx+2:]
				inBlock = false
			} else {
				continue
			}
		}
		for {
			if inBlock {
				break
			}
			startLine := strings.Index(line, "/*")
			startSingle := strings.Index(line, "//")
			if startLine == -1 {
				break
			}
			if startSingle != -1 && startSingle < startLine {
				break
			}
			if end := strings.Index(line[startLine+2:], "*/"); end >= 0 {
				line = line[:startLine] + line[startLine+2+end+2:]
				continue
			}
			line = line[:startLine]
			inBlock = true
		}
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		out = append(out, codeLine{lineNo: i + 1, text: trimmed})
	}
	return out
}

// stmtNode is an intermediate, pre-flattening representation of one
// statement produced by the recursive-descent block parser.
type stmtNode struct {
	Kind  string
	Line  int
	Text  string
	Then  []*stmtNode
	Else  []*stmtNode
	Body  []*stmtNode
	Catch []*stmtNode

	nodeID int
}

type blockParser struct {
	lines []codeLine
	i     int
}

func (p *blockParser) peek() (codeLine, bool) {
	if p.i >= len(p.lines) {
		return codeLine{}, false
	}
	return p.lines[p.i], true
}

// parseBlock consumes statements until it sees a bare "}" or "} else ..."
// closer, which it leaves unconsumed for the caller to inspect.
func (p *blockParser) parseBlock() []*stmtNode {
	var stmts []*stmtNode
	for {
		line, ok := p.peek()
		if !ok {
			return stmts
		}
		if line.text == "}" || strings.HasPrefix(line.text, "} else") || strings.HasPrefix(line.text, "} catch") {
			return stmts
		}
		stmts = append(stmts, p.parseStmt())
	}
}

func (p *blockParser) parseStmt() *stmtNode {
	line, _ := p.peek()
	switch {
	case ifRe.MatchString(line.text):
		return p.parseIf()
	case forRe.MatchString(line.text), whileRe.MatchString(line.text):
		return p.parseLoop()
	case tryRe.MatchString(line.text):
		return p.parseTry()
	case syncRe.MatchString(line.text):
		return p.parseSync()
	default:
		p.i++
		return &stmtNode{Kind: classifyKind(line.text), Line: line.lineNo, Text: line.text}
	}
}

func (p *blockParser) parseIf() *stmtNode {
	header, _ := p.peek()
	p.i++
	node := &stmtNode{Kind: "if_statement", Line: header.lineNo, Text: header.text}
	node.Then = p.parseBlock()

	closer, ok := p.peek()
	if !ok {
		return node
	}
	switch {
	case elseIfRe.MatchString(closer.text):
		node.Else = []*stmtNode{p.parseIf()}
	case elseRe.MatchString(closer.text):
		p.i++ // consume "} else {"
		node.Else = p.parseBlock()
		if c, ok := p.peek(); ok && c.text == "}" {
			p.i++
		}
	case closer.text == "}":
		p.i++
	}
	return node
}

func (p *blockParser) parseLoop() *stmtNode {
	header, _ := p.peek()
	kind := "for_statement"
	if whileRe.MatchString(header.text) {
		kind = "while_statement"
	}
	p.i++
	node := &stmtNode{Kind: kind, Line: header.lineNo, Text: header.text}
	node.Body = p.parseBlock()
	if c, ok := p.peek(); ok && c.text == "}" {
		p.i++
	}
	return node
}

func (p *blockParser) parseTry() *stmtNode {
	header, _ := p.peek()
	p.i++
	node := &stmtNode{Kind: "try_statement", Line: header.lineNo, Text: header.text}
	node.Body = p.parseBlock()

	if c, ok := p.peek(); ok && catchRe.MatchString(c.text) {
		p.i++ // consume "} catch (...) {"
		node.Catch = p.parseBlock()
	}
	if c, ok := p.peek(); ok && c.text == "}" {
		p.i++
	}
	return node
}

func (p *blockParser) parseSync() *stmtNode {
	header, _ := p.peek()
	p.i++
	node := &stmtNode{Kind: "synchronized_statement", Line: header.lineNo, Text: header.text}
	node.Body = p.parseBlock()
	if c, ok := p.peek(); ok && c.text == "}" {
		p.i++
	}
	return node
}

func classifyKind(text string) string {
	switch {
	case throwRe.MatchString(text):
		return "throw_statement"
	case returnRe.MatchString(text):
		return "return_statement"
	default:
		return "statement"
	}
}

// Parse implements FrontEnd.
func (f *HeuristicFrontEnd) Parse(unit SourceUnit) (*ParsedUnit, error) {
	lines := stripComments(unit.Text)
	className := ""
	for _, l := range lines {
		if m := classDeclRe.FindStringSubmatch(l.text); m != nil {
			className = m[2]
			break
		}
	}

	pu := &ParsedUnit{Unit: unit, LineMap: NewLineMap()}
	nextID := 1

	methodStarts := findMethodBoundaries(lines)
	for _, ms := range methodStarts {
		bp := &blockParser{lines: lines[ms.bodyStart:ms.bodyEnd]}
		stmts := bp.parseBlock()

		b := &builder{pu: pu, nextID: &nextID}
		entryID := nextID
		nextID++
		pu.Nodes = append(pu.Nodes, AstNode{NodeID: entryID, LineIndex: ms.headerLine, Text: ms.headerText, Kind: "method_declaration"})
		pu.LineMap.Add(entryID, ms.headerLine)

		b.assignIDs(stmts)
		exits := b.emit(stmts)

		var nodeIDs []int
		var returnIDs []int
		collectIDs(stmts, &nodeIDs, &returnIDs)
		nodeIDs = append([]int{entryID}, nodeIDs...)

		if len(stmts) > 0 {
			pu.Edges = append(pu.Edges, CfgEdge{Src: entryID, Dst: stmts[0].nodeID, Label: EdgeNextLine(stmts[0].Line)})
			// Whatever flows off the end of the body is an implicit
			// return; the CFG builder stitches these to the synthetic exit.
			returnIDs = append(returnIDs, exits...)
		} else {
			returnIDs = append(returnIDs, entryID)
		}

		pu.Methods = append(pu.Methods, Method{
			Name:       ms.name,
			ClassName:  className,
			EntryID:    entryID,
			ReturnIDs:  dedupInts(returnIDs),
			NodeIDs:    nodeIDs,
			Visibility: ms.visibility,
			IsStatic:   ms.isStatic,
			Trivial:    isTrivialMethod(ms, stmts),
		})
	}

	return pu, nil
}

type methodBoundary struct {
	name       string
	headerLine int
	headerText string
	bodyStart  int // index into lines[]
	bodyEnd    int // index into lines[], exclusive
	visibility AstVisibility
	isStatic   bool
}

// AstVisibility aliases MethodVisibility to keep this file's local type
// names short; both refer to the same underlying type.
type AstVisibility = MethodVisibility

// findMethodBoundaries scans the comment-stripped line list for method
// declarations and their matching closing brace, using brace-depth
// tracking. Nested (lambda/inner-class) method-shaped declarations inside
// an outer method are skipped here; the block parser then records their
// lines as ordinary statements of the outer method, so they never become
// method_declaration nodes.
func findMethodBoundaries(lines []codeLine) []methodBoundary {
	var out []methodBoundary
	depth := 0
	classBodyDepth := -1
	i := 0
	for i < len(lines) {
		l := lines[i]
		braces := strings.Count(l.text, "{") - strings.Count(l.text, "}")
		if classBodyDepth < 0 && classDeclRe.MatchString(l.text) {
			classBodyDepth = depth + braces
			depth += braces
			i++
			continue
		}
		if m := methodDeclRe.FindStringSubmatch(l.text); m != nil && depth == classBodyDepth && classBodyDepth >= 0 {
			vis := VisibilityPackage
			switch m[1] {
			case "public":
				vis = VisibilityPublic
			case "protected":
				vis = VisibilityProtected
			case "private":
				vis = VisibilityPrivate
			}
			isStatic := strings.Contains(l.text, "static ")
			bodyStart := i + 1
			// Scan ahead with a local depth to find the matching closing
			// brace; the outer walk re-reads the body lines itself.
			scanDepth := depth + braces
			j := bodyStart
			for j < len(lines) && scanDepth > depth {
				scanDepth += strings.Count(lines[j].text, "{") - strings.Count(lines[j].text, "}")
				j++
			}
			out = append(out, methodBoundary{
				name:       m[2],
				headerLine: l.lineNo,
				headerText: l.text,
				bodyStart:  bodyStart,
				bodyEnd:    j - 1, // exclude the closing brace line
				visibility: vis,
				isStatic:   isStatic,
			})
		}
		depth += braces
		i++
	}
	return out
}

func isTrivialMethod(ms methodBoundary, stmts []*stmtNode) bool {
	if len(stmts) == 0 {
		return true
	}
	if ms.name == "main" && ms.isStatic {
		return true
	}
	if len(stmts) == 1 && stmts[0].Kind == "return_statement" {
		lower := strings.ToLower(ms.name)
		if strings.HasPrefix(lower, "get") || strings.HasPrefix(lower, "is") {
			return true
		}
	}
	if len(stmts) == 1 && stmts[0].Kind == "statement" && strings.HasPrefix(ms.name, "set") {
		return true
	}
	return false
}

func collectIDs(stmts []*stmtNode, ids *[]int, returnIDs *[]int) {
	for _, s := range stmts {
		*ids = append(*ids, s.nodeID)
		if s.Kind == "return_statement" {
			*returnIDs = append(*returnIDs, s.nodeID)
		}
		collectIDs(s.Then, ids, returnIDs)
		collectIDs(s.Else, ids, returnIDs)
		collectIDs(s.Body, ids, returnIDs)
		collectIDs(s.Catch, ids, returnIDs)
	}
}

func dedupInts(in []int) []int {
	seen := make(map[int]struct{}, len(in))
	var out []int
	for _, v := range in {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// builder assigns node ids/nodes and constructs CfgEdges from the stmtNode
// tree of one method body.
type builder struct {
	pu         *ParsedUnit
	nextID     *int
	exitLabels map[int]EdgeLabel
}

func (b *builder) assignIDs(stmts []*stmtNode) {
	for _, s := range stmts {
		s.nodeID = *b.nextID
		*b.nextID++
		b.pu.Nodes = append(b.pu.Nodes, AstNode{NodeID: s.nodeID, LineIndex: s.Line, Text: s.Text, Kind: s.Kind})
		b.pu.LineMap.Add(s.nodeID, s.Line)
		b.assignIDs(s.Then)
		b.assignIDs(s.Else)
		b.assignIDs(s.Body)
		b.assignIDs(s.Catch)
	}
	if b.exitLabels == nil {
		b.exitLabels = make(map[int]EdgeLabel)
	}
}

// emit builds edges for a sequence of sibling statements and returns the
// node ids flow may exit through to whatever follows the sequence.
func (b *builder) emit(stmts []*stmtNode) []int {
	var prevExits []int
	for i, s := range stmts {
		if i > 0 {
			for _, e := range prevExits {
				label := b.exitLabels[e]
				if label == "" {
					label = EdgeNextLine(s.Line)
				}
				b.pu.Edges = append(b.pu.Edges, CfgEdge{Src: e, Dst: s.nodeID, Label: label})
			}
		}
		prevExits = b.emitStmt(s)
	}
	return prevExits
}

func (b *builder) emitStmt(s *stmtNode) []int {
	switch s.Kind {
	case "if_statement":
		var thenExits, elseExits []int
		if len(s.Then) > 0 {
			b.pu.Edges = append(b.pu.Edges, CfgEdge{Src: s.nodeID, Dst: s.Then[0].nodeID, Label: EdgePosNext})
			thenExits = b.emit(s.Then)
		} else {
			b.exitLabels[s.nodeID] = EdgePosNext
			thenExits = []int{s.nodeID}
		}
		if len(s.Else) > 0 {
			b.pu.Edges = append(b.pu.Edges, CfgEdge{Src: s.nodeID, Dst: s.Else[0].nodeID, Label: EdgeNegNext})
			elseExits = b.emit(s.Else)
		} else {
			b.exitLabels[s.nodeID] = EdgeNegNext
			elseExits = append(elseExits, s.nodeID)
		}
		return append(thenExits, elseExits...)

	case "for_statement", "while_statement":
		if len(s.Body) > 0 {
			b.pu.Edges = append(b.pu.Edges, CfgEdge{Src: s.nodeID, Dst: s.Body[0].nodeID, Label: EdgePosNext})
			bodyExits := b.emit(s.Body)
			for _, e := range bodyExits {
				label := b.exitLabels[e]
				if label == "" {
					label = EdgePlain
				}
				b.pu.Edges = append(b.pu.Edges, CfgEdge{Src: e, Dst: s.nodeID, Label: label})
			}
		}
		b.exitLabels[s.nodeID] = EdgeNegNext
		return []int{s.nodeID}

	case "try_statement":
		var exits []int
		if len(s.Body) > 0 {
			b.pu.Edges = append(b.pu.Edges, CfgEdge{Src: s.nodeID, Dst: s.Body[0].nodeID, Label: EdgePlain})
			exits = append(exits, b.emit(s.Body)...)
			if len(s.Catch) > 0 {
				for _, throwID := range collectThrowIDs(s.Body) {
					b.pu.Edges = append(b.pu.Edges, CfgEdge{Src: throwID, Dst: s.Catch[0].nodeID, Label: EdgeCatchException})
				}
				exits = append(exits, b.emit(s.Catch)...)
			}
		} else {
			exits = []int{s.nodeID}
		}
		return exits

	case "synchronized_statement":
		if len(s.Body) > 0 {
			b.pu.Edges = append(b.pu.Edges, CfgEdge{Src: s.nodeID, Dst: s.Body[0].nodeID, Label: EdgeSyncNext})
			return b.emit(s.Body)
		}
		return []int{s.nodeID}

	case "throw_statement":
		return nil // dangling; the CFG builder connects throw_statement nodes to the synthetic exit.

	case "return_statement":
		return nil // flow leaves the method; the builder routes returns to the synthetic exit.

	default:
		return []int{s.nodeID}
	}
}

func collectThrowIDs(stmts []*stmtNode) []int {
	var out []int
	for _, s := range stmts {
		if s.Kind == "throw_statement" {
			out = append(out, s.nodeID)
		}
		out = append(out, collectThrowIDs(s.Then)...)
		out = append(out, collectThrowIDs(s.Else)...)
		out = append(out, collectThrowIDs(s.Body)...)
	}
	return out
}
