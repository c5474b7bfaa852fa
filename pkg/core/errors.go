package core

import "errors"

// Common errors.
var (
	ErrNotFound      = errors.New("document not found")
	ErrIndexNotFound = errors.New("index not found")
	ErrIndexExists   = errors.New("index already exists")
	ErrInvalidInput  = errors.New("invalid input")
)
