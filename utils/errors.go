package utils

import (
	"github.com/pkg/errors"
)

// NewIncorrectVectorLengthError is returned when a caller passes a flat vector of the wrong size,
// e.g. a pose that is not 6 long or a homogeneous matrix that is not 16 long.
func NewIncorrectVectorLengthError(actual, expected int) error {
	return errors.Errorf("vector has length %d, expected %d", actual, expected)
}

// NewUnknownStrategyError is returned when a named strategy has not been registered.
func NewUnknownStrategyError(name string) error {
	return errors.Errorf("unknown strategy %q", name)
}
