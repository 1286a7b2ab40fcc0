package domain

import "errors"

var (
	// ErrValidation marks input that can never succeed and must not be retried.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing entity.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an operation rejected because of current entity state.
	ErrConflict = errors.New("conflict")

	// ErrInvalidSelection marks a stage action whose guest selection is empty
	// or references guests already terminal for the stage.
	ErrInvalidSelection = errors.New("invalid guest selection")

	// ErrCommentRequired marks a reject or blacklist action without a comment.
	ErrCommentRequired = errors.New("comment required")

	// ErrUnauthorized marks a job-trigger call with a missing or wrong secret.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotConfigured marks a permanently missing provider or secret.
	ErrNotConfigured = errors.New("not configured")
)
