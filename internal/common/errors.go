package common

import "errors"

var (
	// validation / lookup errors
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")

	// security errors
	ErrAuthentication = errors.New("authentication failed")
	ErrRateLimited    = errors.New("rate limit exceeded")

	// account errors
	ErrInvalidState = errors.New("invalid account status")

	// generation collaborator errors
	ErrConnection = errors.New("connection error")
	ErrService    = errors.New("service error")
)
