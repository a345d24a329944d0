package engine

import (
	"github.com/getmockd/mockresolver/internal/matching"
	"github.com/getmockd/mockresolver/pkg/mock"
)

// MatchOutcome is the result of candidate selection. A nil Candidate means
// no candidate matched; that is an ordinary outcome, not an error.
type MatchOutcome struct {
	Candidate *mock.CandidateResponse
}

// Matched reports whether a candidate was selected.
func (o MatchOutcome) Matched() bool {
	return o.Candidate != nil
}

// Selector picks one candidate response for a request.
type Selector struct {
	matcher *matching.Matcher
}

// NewSelector creates a Selector. A nil matcher uses a private one.
func NewSelector(m *matching.Matcher) *Selector {
	if m == nil {
		m = matching.New()
	}
	return &Selector{matcher: m}
}

var defaultSelector = NewSelector(nil)

// Select picks a candidate using a process-wide Selector.
func Select(req *mock.Request, candidates []mock.CandidateResponse) MatchOutcome {
	return defaultSelector.Select(req, candidates)
}

// Select returns the matching candidate with the highest priority. Ties go
// to the smallest ConfiguredOrder, then the smallest ID, so the result does
// not depend on slice order. Select has no side effects.
func (s *Selector) Select(req *mock.Request, candidates []mock.CandidateResponse) MatchOutcome {
	var best *mock.CandidateResponse
	for i := range candidates {
		c := &candidates[i]
		if best != nil && !outranks(c, best) {
			continue
		}
		if s.matcher.Evaluate(c.Match, req) {
			best = c
		}
	}
	return MatchOutcome{Candidate: best}
}

// outranks reports whether a should be preferred over b.
func outranks(a, b *mock.CandidateResponse) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.ConfiguredOrder != b.ConfiguredOrder {
		return a.ConfiguredOrder < b.ConfiguredOrder
	}
	return a.ID < b.ID
}
