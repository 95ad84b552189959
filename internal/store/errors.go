package store

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrDuplicateID = errors.New("duplicate id")
	ErrEmptyID     = errors.New("id is required")
)
