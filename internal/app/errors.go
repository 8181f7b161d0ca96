package service

import "errors"

// Sentinel errors returned by the service.
var (
	ErrNotStarted        = errors.New("service not started")
	ErrTemplateNotFound  = errors.New("template not found")
	ErrRequestInProgress = errors.New("request with this idempotency key is in progress")
	ErrInvalidSort       = errors.New("invalid member sort")
)
