package domain

import (
	"crypto/md5" //nolint:gosec // content key, not a security boundary
	"encoding/hex"
	"strconv"
)

// Fingerprint identifies raw document content for duplicate detection.
func Fingerprint(content []byte) string {
	sum := md5.Sum(content) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])
}

// RecordID is deterministic in position and text, so re-ingesting the same
// document overwrites its records instead of adding new ones.
func RecordID(seq int, text string) string {
	return strconv.Itoa(seq) + "-" + Fingerprint([]byte(text))
}
