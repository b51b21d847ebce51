package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Response is a cached handler response.
type Response struct {
	Status int
	Body   []byte
}

// ValidateKey checks that a client-supplied idempotency key is usable as a
// document id.
func ValidateKey(key string) error {
	if len(key) < 8 {
		return fmt.Errorf("idempotency key must be at least 8 characters")
	}
	if len(key) > 255 {
		return fmt.Errorf("idempotency key must be at most 255 characters")
	}
	for _, r := range key {
		if r <= ' ' || r > '~' {
			return fmt.Errorf("idempotency key contains invalid character %q", r)
		}
	}
	return nil
}

// ReadBody reads at most maxSize bytes of the request body.
func ReadBody(body io.Reader, maxSize int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxSize)
	}
	return data, nil
}

// HashRequest fingerprints the request body so a reused key with a different
// payload can be rejected.
func HashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// ShouldReturnCached decides whether a stored response may be replayed for
// this request.
func ShouldReturnCached(cached *Response, requestHash, storedHash string) (bool, string) {
	if requestHash != storedHash {
		return false, "request payload differs from the original request for this key"
	}
	return true, ""
}
