package referenceframe

import "github.com/pkg/errors"

// OOBErrString is a string that all OOB errors should contain, so that they can be checked for distinct from other errors.
const OOBErrString = "input out of bounds"

// NewIncorrectDoFError returns an error indicating that the length of an input slice does not match the DoF of the
// chain it was passed to.
func NewIncorrectDoFError(actual, expected int) error {
	return errors.Errorf("number of dof mismatch: got %d inputs, chain has %d joints", actual, expected)
}

// NewInvertedLimitError returns an error describing a joint whose lower limit exceeds its upper limit.
func NewInvertedLimitError(joint int, limit Limit) error {
	return errors.Errorf("joint %d has min %.5f greater than max %.5f", joint, limit.Min, limit.Max)
}

// NewOutOfBoundsError returns an error describing a joint value outside of its limit.
func NewOutOfBoundsError(joint int, value float64, limit Limit) error {
	return errors.Errorf("joint %d: %.5f %s [%.5f, %.5f]", joint, value, OOBErrString, limit.Min, limit.Max)
}
