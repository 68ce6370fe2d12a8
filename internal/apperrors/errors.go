package apperrors

import "errors"

// ErrNotFound indicates that a requested transaction does not exist.
var ErrNotFound = errors.New("not found")

// ErrConfiguration indicates required configuration is missing or invalid.
var ErrConfiguration = errors.New("configuration error")
