package matching

// Match score constants for path matching.
// Higher scores indicate more specific/precise matches.
const (
	// ScorePathExact is the score for an exact path match.
	ScorePathExact = 15

	// ScorePathNamedParams is the score for a path with named parameters match.
	ScorePathNamedParams = 12

	// ScorePathWildcard is the score for a wildcard path match.
	ScorePathWildcard = 10
)

// ScoreMethod is added when an endpoint names the request method explicitly
// rather than accepting any method.
const ScoreMethod = 10

// maxPathScore returns the best score a path pattern can achieve.
func maxPathScore(pattern string) int {
	switch {
	case containsParam(pattern):
		return ScorePathNamedParams
	case containsWildcard(pattern):
		return ScorePathWildcard
	default:
		return ScorePathExact
	}
}
