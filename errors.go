package xupload

import "errors"

var (
	// ErrInvalidPath is returned when a requested path would resolve outside the data root
	ErrInvalidPath = errors.New("invalid path")
	// ErrUnauthorized is returned when the upload signature does not match
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTruncatedUpload is returned when the body ends before the declared length
	ErrTruncatedUpload = errors.New("truncated upload")
	// ErrConflict is returned when an object already exists at the target path
	ErrConflict = errors.New("conflict")
	// ErrNotFound is returned when an object's data or metadata is missing or unreadable
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuota is returned when the quota parameter is not a non-negative integer
	ErrInvalidQuota = errors.New("invalid quota")
)
