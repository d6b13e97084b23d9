// Package runid generates crawl run identifiers.
package runid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tokenBytes is the amount of randomness per run ID. Four bytes keeps the
// identifier short enough for export file names while making collisions
// across runs negligible.
const tokenBytes = 4

// Generator produces hex-encoded random run IDs.
type Generator struct{}

// New creates a Generator.
func New() *Generator {
	return &Generator{}
}

// NewRunID returns an 8-character hex token.
func (Generator) NewRunID() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
