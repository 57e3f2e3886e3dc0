// Package pathselect scores and picks the candidate paths offered to the
// LLM each iteration, balancing exploitation of high-missed-value paths
// against exploration of rarely visited ones.
package pathselect

import (
	"math/rand"

	"github.com/covergen/covergen/internal/cfgbuild"
)

// History counts how many times each path label has been offered to the
// LLM during the current run. Process-scoped, reset per run.
type History map[string]int

// Visits returns the current visit count for a label.
func (h History) Visits(label string) int {
	return h[label]
}

// pay records one visit for a label. Visits are paid at selection time,
// before the LLM call, so a crash mid-call still counts.
func (h History) pay(label string) {
	h[label]++
}

// Selector picks paths under the configured policy.
type Selector struct {
	// MaxVisit excludes paths already offered this many times from
	// two-path selection.
	MaxVisit int
	// Alpha weights missed value against novelty in single-path scoring.
	Alpha float64
	// Rand shuffles candidates before selection to bias tie-breaks; nil
	// keeps the incoming order (deterministic, used by tests).
	Rand *rand.Rand
}

// New returns a Selector with the given policy knobs.
func New(maxVisit int, alpha float64, rng *rand.Rand) *Selector {
	if maxVisit <= 0 {
		maxVisit = 10
	}
	if alpha <= 0 || alpha > 1 {
		alpha = 0.7
	}
	return &Selector{MaxVisit: maxVisit, Alpha: alpha, Rand: rng}
}

// PickTwo selects the exploit path (argmax missed value) and the explore
// path (argmin visits) from the candidates still under MaxVisit. Both pay a
// visit even when they resolve to the same label; the duplicate collapses
// to a single returned path.
func (s *Selector) PickTwo(candidates []cfgbuild.Path, h History) []cfgbuild.Path {
	pool := s.eligible(candidates, h)
	if len(pool) == 0 {
		return nil
	}

	exploit := pool[0]
	for _, p := range pool[1:] {
		if p.MissedValue > exploit.MissedValue {
			exploit = p
		}
	}
	explore := pool[0]
	for _, p := range pool[1:] {
		if h.Visits(p.Label) < h.Visits(explore.Label) {
			explore = p
		}
	}

	h.pay(exploit.Label)
	h.pay(explore.Label)
	if explore.Label == exploit.Label {
		return []cfgbuild.Path{exploit}
	}
	return []cfgbuild.Path{exploit, explore}
}

// PickOne selects a single path by blended score
// alpha*(missed/maxMissed) + (1-alpha)/(visits+1), ties broken by raw
// missed value.
func (s *Selector) PickOne(candidates []cfgbuild.Path, h History) (cfgbuild.Path, bool) {
	pool := s.eligible(candidates, h)
	if len(pool) == 0 {
		return cfgbuild.Path{}, false
	}

	maxMissed := 0
	for _, p := range pool {
		if p.MissedValue > maxMissed {
			maxMissed = p.MissedValue
		}
	}
	score := func(p cfgbuild.Path) float64 {
		exploit := 0.0
		if maxMissed > 0 {
			exploit = float64(p.MissedValue) / float64(maxMissed)
		}
		return s.Alpha*exploit + (1-s.Alpha)/float64(h.Visits(p.Label)+1)
	}

	best := pool[0]
	bestScore := score(best)
	for _, p := range pool[1:] {
		sc := score(p)
		if sc > bestScore || (sc == bestScore && p.MissedValue > best.MissedValue) {
			best, bestScore = p, sc
		}
	}
	h.pay(best.Label)
	return best, true
}

// eligible shuffles (when configured) and drops exhausted paths.
func (s *Selector) eligible(candidates []cfgbuild.Path, h History) []cfgbuild.Path {
	pool := append([]cfgbuild.Path(nil), candidates...)
	if s.Rand != nil {
		s.Rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	}
	var out []cfgbuild.Path
	for _, p := range pool {
		if h.Visits(p.Label) >= s.MaxVisit {
			continue
		}
		out = append(out, p)
	}
	return out
}
