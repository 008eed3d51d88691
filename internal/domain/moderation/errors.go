package moderation

import "errors"

var (
	// Override errors
	ErrNoModerationHistory   = errors.New("content has no moderation history")
	ErrInvalidClassification = errors.New("invalid classification")
	ErrContentNotFound       = errors.New("content not found")
)
