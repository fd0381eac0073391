package id

import (
	"crypto/rand"
	"encoding/hex"
)

// New returns a random hex request identifier used to correlate log lines
// and trace spans for a single conversion.
func New() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "req-fallback-id"
	}
	return hex.EncodeToString(b[:])
}
