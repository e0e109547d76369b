package repository

import "errors"

var (
	// ErrNotFound is returned when the referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the requester is not allowed to mutate
	// the row (e.g. editing someone else's message).
	ErrForbidden = errors.New("forbidden")
	// ErrEmptyContent is returned for empty or whitespace-only content.
	ErrEmptyContent = errors.New("empty content")
	// ErrSamePair is returned when a private room is requested for a single user.
	ErrSamePair = errors.New("private room requires two distinct users")
	// ErrInvalidStep is returned when a liturgy step index is out of range.
	ErrInvalidStep = errors.New("step index out of range")
)
