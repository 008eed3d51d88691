package content

import "errors"

var (
	ErrThreadNotFound  = errors.New("thread not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrInvalidID       = errors.New("invalid content id")
)
