package matching

import (
	"fmt"
	"strings"

	"github.com/getmockd/mockresolver/pkg/mock"
)

// ConditionResult describes whether a single condition matched a request.
type ConditionResult struct {
	Index    int        `json:"index"`
	Field    mock.Field `json:"field,omitempty"`
	Key      string     `json:"key,omitempty"`
	Op       mock.Op    `json:"op"`
	Negate   bool       `json:"negate,omitempty"`
	Matched  bool       `json:"matched"`
	Expected any        `json:"expected,omitempty"`
	Actual   any        `json:"actual,omitempty"`
}

// Explanation is a per-condition breakdown of a predicate against a request.
type Explanation struct {
	Matched         bool              `json:"matched"`
	MatchPercentage int               `json:"matchPercentage"`
	Conditions      []ConditionResult `json:"conditions"`
	Reason          string            `json:"reason"`
}

// Explain evaluates every condition without short-circuiting, so authors can
// see why a candidate did or did not match.
func (m *Matcher) Explain(match *mock.MatchRequest, req *mock.Request) *Explanation {
	if req == nil {
		req = &mock.Request{}
	}
	ex := &Explanation{Matched: m.Evaluate(match, req)}
	if match == nil || len(match.Conditions) == 0 {
		ex.MatchPercentage = 100
		ex.Reason = "no conditions"
		return ex
	}

	passed := 0
	for i := range match.Conditions {
		c := &match.Conditions[i]
		ok, actual := m.test(c, req)
		ok = ok != c.Negate
		if ok {
			passed++
		}
		ex.Conditions = append(ex.Conditions, ConditionResult{
			Index:    i,
			Field:    c.Field,
			Key:      c.Key,
			Op:       c.Op,
			Negate:   c.Negate,
			Matched:  ok,
			Expected: c.Value,
			Actual:   actual,
		})
	}
	ex.MatchPercentage = passed * 100 / len(match.Conditions)
	ex.Reason = generateReason(match.Logic, ex.Conditions)
	return ex
}

// generateReason creates a human-readable explanation of the outcome.
func generateReason(logic mock.Logic, results []ConditionResult) string {
	var matched []string
	var firstMismatch *ConditionResult
	for i := range results {
		if results[i].Matched {
			matched = append(matched, describe(&results[i]))
		} else if firstMismatch == nil {
			firstMismatch = &results[i]
		}
	}

	switch {
	case firstMismatch == nil:
		return "all conditions matched"
	case logic == mock.LogicOr && len(matched) > 0:
		return joinFields(matched) + " matched"
	case logic == mock.LogicOr:
		return "no condition matched"
	case len(matched) == 0:
		return formatMismatch(firstMismatch)
	default:
		return joinFields(matched) + " matched, but " + formatMismatch(firstMismatch)
	}
}

func describe(r *ConditionResult) string {
	if r.Key != "" {
		return fmt.Sprintf("%s %s", r.Field, r.Key)
	}
	if r.Field == "" {
		return "expr"
	}
	return string(r.Field)
}

// formatMismatch formats a single condition mismatch.
func formatMismatch(r *ConditionResult) string {
	not := ""
	if r.Negate {
		not = "not "
	}
	switch r.Op {
	case mock.OpExists:
		return fmt.Sprintf("%s expected %sto exist", describe(r), not)
	case mock.OpExpr:
		if r.Negate {
			return fmt.Sprintf("expression %q was true", stringify(r.Expected))
		}
		return fmt.Sprintf("expression %q was false", stringify(r.Expected))
	default:
		return fmt.Sprintf("%s expected %sto %s %q, got %q", describe(r), not, r.Op, truncate(stringify(r.Expected), 64), truncate(stringify(r.Actual), 64))
	}
}

// joinFields joins field names with commas and "and".
func joinFields(fields []string) string {
	switch len(fields) {
	case 0:
		return ""
	case 1:
		return fields[0]
	case 2:
		return fields[0] + " and " + fields[1]
	default:
		return strings.Join(fields[:len(fields)-1], ", ") + ", and " + fields[len(fields)-1]
	}
}

// truncate shortens a string to maxLen, appending "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
