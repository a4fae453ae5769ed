package card

import (
	"errors"
	"fmt"
)

// ParseError reports a card file that could not be decoded.
type ParseError struct {
	Path string
	// Field is set when a single frontmatter field was rejected under the
	// Strict leniency policy.
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse %s: field %s: %s", e.Path, e.Field, e.Reason)
	}
	return fmt.Sprintf("parse %s: %s", e.Path, e.Reason)
}

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
