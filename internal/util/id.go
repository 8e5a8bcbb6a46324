// Package util holds small helpers shared across the service.
package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a fresh random identifier: the prefix, an underscore,
// and 32 hex characters. Prefixes (prj, tsk, msg, ...) keep entity ids
// recognizable in logs and payloads.
func NewID(prefix string) string {
	raw := make([]byte, 16)
	_, _ = rand.Read(raw)
	if prefix == "" {
		return hex.EncodeToString(raw)
	}
	return prefix + "_" + hex.EncodeToString(raw)
}
