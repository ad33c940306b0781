package xupload

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

// SignatureVerifier checks upload authorization codes issued by the XMPP server.
type SignatureVerifier struct {
	secret []byte
}

// NewSignatureVerifier creates a verifier holding a copy of the shared secret.
func NewSignatureVerifier(secret []byte) (*SignatureVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("new signature verifier: empty secret")
	}
	return &SignatureVerifier{secret: append([]byte(nil), secret...)}, nil
}

// Sign returns the hex encoded HMAC-SHA256 of "<path> <length>" keyed with secret.
//
// The issuer computes the same value and appends it to the upload URL as the
// v query parameter:
//
//	code := xupload.Sign(secret, "abc/f.txt", 5)
//	url := "https://upload.example.org/abc/f.txt?v=" + code
func Sign(secret []byte, path string, length int64) string {
	msg := path + " " + strconv.FormatInt(length, 10)
	return hex.EncodeToString(hmacSHA256(secret, []byte(msg)))
}

// Verify recomputes the code for path and length and compares it to code in
// constant time. Returns an error wrapping ErrUnauthorized on mismatch.
func (v *SignatureVerifier) Verify(path string, length int64, code string) error {
	expected := Sign(v.secret, path, length)
	if !hmac.Equal([]byte(expected), []byte(code)) {
		return fmt.Errorf("verify %s: signature mismatch: %w", path, ErrUnauthorized)
	}
	return nil
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}
