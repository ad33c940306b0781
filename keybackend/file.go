package keybackend

import (
	"bytes"
	"fmt"
	"os"
)

// LoadSecretFromFile reads the secret from path. A single trailing newline
// (as left by most editors and `echo`) is not part of the secret.
func LoadSecretFromFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted config file
	if err != nil {
		return nil, fmt.Errorf("read secret file: %w", err)
	}

	data = bytes.TrimSuffix(data, []byte("\n"))
	data = bytes.TrimSuffix(data, []byte("\r"))

	if len(data) == 0 {
		return nil, fmt.Errorf("read secret file %s: %w", path, ErrNoSecret)
	}

	return data, nil
}
