package model

import (
	"github.com/pkg/errors"

	"github.com/CraigKelly/greta/shape"
)

// Error causes for graph construction and compilation. Match them with
// errors.Is: every error returned by this package wraps one of these (or an
// error from the shape or dist packages) with context.
var (
	ErrShape                 = shape.ErrShape
	ErrDataValidation        = errors.New("Data validation error")
	ErrDuplicateDistribution = errors.New("Duplicate distribution")
	ErrTruncation            = errors.New("Truncation error")
	ErrInvalidBinding        = errors.New("Invalid distribution binding")
	ErrUnboundVariable       = errors.New("Unbound variable")
	ErrCyclicGraph           = errors.New("Cyclic graph")
	ErrDiscreteParameter     = errors.New("Discrete parameter")
)
