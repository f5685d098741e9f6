// Package fingerprint derives stable digests from the fields a record's
// estimate depends on.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Separator joins fields before hashing.
const Separator = "|"

// Size is the length of a hex-encoded fingerprint.
const Size = sha256.Size * 2

// Of returns the hex SHA-256 of fields joined by Separator.
// Order matters and empty fields are kept, so "a", "" and "", "a" differ.
func Of(fields ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(fields, Separator)))
	return hex.EncodeToString(sum[:])
}

// Record is the fixed field order used for records: name, description,
// free-text content, children summary, extra context.
func Record(name, description, content, children, context string) string {
	return Of(name, description, content, children, context)
}
