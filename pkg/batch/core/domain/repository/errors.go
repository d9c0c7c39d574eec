package repository

import "errors"

// ErrByteArrayNotFound is returned when a configuration blob is missing.
var ErrByteArrayNotFound = errors.New("byte array not found")
