package extract

import (
	"errors"
	"fmt"

	"github.com/getmockd/mockresolver/pkg/mock"
)

// Sentinel errors wrapped by ExtractError.
var (
	// ErrNoMatch means the rule selected nothing from the payload.
	ErrNoMatch = errors.New("no value matched")

	// ErrNotStructured means a path rule ran against a body that is neither
	// JSON nor XML.
	ErrNotStructured = errors.New("payload is not JSON or XML")

	// ErrUnknownDataset means a dataset rule names a dataset the endpoint
	// does not define.
	ErrUnknownDataset = errors.New("unknown dataset")

	// ErrInvalidRule means the rule itself is malformed.
	ErrInvalidRule = errors.New("invalid extraction rule")
)

// ExtractError is returned when a required rule fails.
type ExtractError struct {
	Rule string
	Kind mock.ExtractionKind
	Err  error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %q (%s): %v", e.Rule, e.Kind, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *ExtractError) Hint() string {
	switch {
	case errors.Is(e.Err, ErrNoMatch):
		return fmt.Sprintf("The request did not contain a value for %q. Mark the rule optional or give it a default.", e.Rule)
	case errors.Is(e.Err, ErrNotStructured):
		return "Path rules need a JSON or XML body. Use a regex rule for plain text."
	case errors.Is(e.Err, ErrUnknownDataset):
		return "Declare the dataset under the endpoint's datasets list."
	default:
		return "Check the rule definition in your configuration."
	}
}
