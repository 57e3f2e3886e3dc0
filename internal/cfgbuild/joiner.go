package cfgbuild

import (
	"sort"

	"github.com/covergen/covergen/internal/ast"
	"github.com/covergen/covergen/internal/coverage"
)

// SimpleTarget stands in for a complexity-1 method: no candidate paths, the
// Prompt Builder cites the missed line numbers directly.
type SimpleTarget struct {
	MethodName  string
	MissedLines []int
}

// BranchSite is one missed branch location, carried into the prompt's
// branch-coverage guidance section.
type BranchSite struct {
	Line      int
	Kind      string // "if_statement", "for_statement", "while_statement", "try_statement"
	Condition string // header text of the branch node
}

// JoinCoverage maps a coverage report onto a method's paths: each path's
// touched source lines are intersected with the missed-line and
// missed-branch sets to produce its missed value. Only carriers
// (missed value > 0) are returned.
func JoinCoverage(paths []Path, cfg *MethodCFG, lm *ast.LineMap, cov *coverage.Coverage) []Path {
	var carriers []Path
	for _, p := range paths {
		p.Lines = lm.LinesFor(p.Nodes)
		sort.Ints(p.Lines)
		p.MissedValue = 0
		for _, line := range p.Lines {
			if cov.MissedLines[line] {
				p.MissedValue++
			}
			if cov.MissedBranches[line] {
				p.MissedValue++
			}
		}
		if p.MissedValue > 0 {
			carriers = append(carriers, p)
		}
	}
	return carriers
}

// SimpleTargetFor builds the complexity-1 representation of a method: its
// missed source lines, with no path selection involved. Returns false when
// nothing in the method is missed.
func SimpleTargetFor(cfg *MethodCFG, lm *ast.LineMap, cov *coverage.Coverage) (SimpleTarget, bool) {
	lines := lm.LinesFor(cfg.NodeIDs)
	sort.Ints(lines)
	var missed []int
	for _, line := range lines {
		if cov.MissedLines[line] || cov.MissedBranches[line] {
			missed = append(missed, line)
		}
	}
	if len(missed) == 0 {
		return SimpleTarget{}, false
	}
	return SimpleTarget{MethodName: cfg.Name, MissedLines: missed}, true
}

// MissedBranchSites collects the branch nodes of a method whose source line
// appears in the missed-branch set, for the prompt's guidance section.
func MissedBranchSites(cfg *MethodCFG, cov *coverage.Coverage) []BranchSite {
	var out []BranchSite
	seen := make(map[int]struct{})
	for _, id := range cfg.NodeIDs {
		node, ok := cfg.Node(id)
		if !ok {
			continue
		}
		switch node.Kind {
		case "if_statement", "for_statement", "while_statement", "try_statement":
		default:
			continue
		}
		if !cov.MissedBranches[node.LineIndex] {
			continue
		}
		if _, dup := seen[node.LineIndex]; dup {
			continue
		}
		seen[node.LineIndex] = struct{}{}
		out = append(out, BranchSite{
			Line:      node.LineIndex,
			Kind:      node.Kind,
			Condition: node.Text,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}
