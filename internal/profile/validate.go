package profile

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var (
	// ErrInvalidState is returned when a state fails structural validation.
	ErrInvalidState = errors.New("invalid user state")

	// ErrInvalidSession is returned when a reported session is malformed.
	ErrInvalidSession = errors.New("invalid session")
)

// Validate checks the structural invariants of a UserState: known enum
// values, capacities within [1,5] and a bounded history.
func Validate(s UserState) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return nil
}
