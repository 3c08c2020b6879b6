package storage

import "errors"

// Common client storage errors
var (
	// ErrCredentialsNotFound indicates that no device credentials are stored
	ErrCredentialsNotFound = errors.New("device credentials not found")

	// ErrTokenNotFound indicates that no access token is stored
	ErrTokenNotFound = errors.New("access token not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
