package grid

import "errors"

// ErrConfiguration marks inconsistent lattice or operator parameters.
// It is wrapped by the constructors in this module so callers can test
// for the whole class with errors.Is.
var ErrConfiguration = errors.New("inconsistent configuration")
