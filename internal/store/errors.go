package store

import "errors"

// NotFoundMessage is the advisory error state set when an operation names a
// card that is not on the board.
const NotFoundMessage = "Card not found"

var (
	// ErrCardNotFound is returned for unknown card ids when the store was
	// built WithStrictNotFound. Otherwise a missing card is only reported
	// through the error state.
	ErrCardNotFound = errors.New("card not found")

	// ErrUnknownColumn is returned when an operation names a column that is
	// not configured.
	ErrUnknownColumn = errors.New("unknown column")
)

// IsNotFound reports whether err is ErrCardNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCardNotFound)
}
