package orchestrators

import "errors"

// InvalidInputError reports a request the operator can correct, as opposed
// to a backend rejection or a transport failure.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string { return e.Reason }

// IsInvalidInput reports whether err stems from bad operator input.
func IsInvalidInput(err error) bool {
	var invalid *InvalidInputError
	return errors.As(err, &invalid)
}

func invalidInput(reason string) error {
	return &InvalidInputError{Reason: reason}
}
