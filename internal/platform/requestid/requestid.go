// Package requestid generates correlation ids for requests arriving
// without an X-Request-Id header.
package requestid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// New returns a 24-hex-char random id. Shorter than a uuid on purpose:
// the id only needs to be unique within the log retention window.
func New() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(b), nil
}
