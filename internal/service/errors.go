package service

import (
	"errors"
	"fmt"
)

var ErrInvalidArgument = errors.New("invalid argument")

var (
	ErrSourceBeliefIDMissing   = fmt.Errorf("%w: source belief ID cannot be empty", ErrInvalidArgument)
	ErrTargetBeliefIDMissing   = fmt.Errorf("%w: target belief ID cannot be empty", ErrInvalidArgument)
	ErrSelfReference           = fmt.Errorf("%w: self-referential relationships are not allowed", ErrInvalidArgument)
	ErrUnknownRelationshipType = fmt.Errorf("%w: unknown relationship type", ErrInvalidArgument)
	ErrAgentIDMissing          = fmt.Errorf("%w: agent ID cannot be empty", ErrInvalidArgument)
	ErrBeliefIDMissing         = fmt.Errorf("%w: belief ID cannot be empty", ErrInvalidArgument)
)

var (
	ErrRelationshipNotFound    = errors.New("relationship not found")
	ErrUnsupportedExportFormat = errors.New("unsupported export format")
	ErrUnsupportedImportFormat = errors.New("unsupported import format")
)
