package clientcli

import "errors"

// Errors for client configuration.
var (
	ErrEndpointRequired = errors.New("endpoint is required")
	ErrSecretRequired   = errors.New("secret is required")
)

// Errors for input validation.
var (
	ErrEmptyPath = errors.New("path is required")
)
