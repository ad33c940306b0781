package keybackend

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateSecret returns n random bytes encoded as unpadded URL-safe base64,
// suitable for pasting into both the XMPP server and xupload configuration.
func GenerateSecret(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("generate secret: invalid length %d", n)
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}
