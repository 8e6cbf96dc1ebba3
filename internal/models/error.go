package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Infrastructure faults
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrProviderUnavailable = errors.New("identity provider unavailable")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
)
