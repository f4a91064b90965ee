package services

import "errors"

// Error taxonomy for the arena lifecycle. Handlers classify these with
// errors.Is and map them to HTTP status codes; none of them is retried
// server-side. Anything else bubbling out of a service is a storage error.
var (
	ErrMatchNotFound    = errors.New("match not found")
	ErrInvalidState     = errors.New("operation not valid for current match status")
	ErrForbidden        = errors.New("caller is not allowed to perform this operation")
	ErrMatchFull        = errors.New("match already has an opponent")
	ErrAlreadyWaiting   = errors.New("creator already has a waiting match")
	ErrInsufficientPool = errors.New("not enough questions in the selected category")
	ErrValidation       = errors.New("invalid request")
)
