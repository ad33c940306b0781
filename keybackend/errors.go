package keybackend

import "errors"

// ErrNoSecret is returned when neither an inline secret nor a secret file is configured.
var ErrNoSecret = errors.New("no secret configured")
