package store

import "errors"

var (
	ErrEntryNotFound     = errors.New("queue entry not found")
	ErrIllegalTransition = errors.New("status transition not allowed")
	ErrEmptyQueue        = errors.New("no waiting entries")
	ErrInvalidEntry      = errors.New("invalid queue entry")
	ErrAccessDenied      = errors.New("access denied")
	ErrPatientNotFound   = errors.New("patient not found")
	ErrRecordNotFound    = errors.New("record not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrLoginFailed       = errors.New("invalid credentials")
)
