// Package namespace derives the partition key that isolates one document's
// vectors from every other document's in the shared index.
package namespace

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/kailas-cloud/docsage/internal/domain"
)

// Namespace is a lowercase hex SHA-256 digest.
type Namespace string

// String returns the raw key.
func (n Namespace) String() string { return string(n) }

// Valid reports whether n looks like a derived namespace.
func (n Namespace) Valid() bool {
	if len(n) != sha256.Size*2 {
		return false
	}
	for _, r := range n {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// Derive hashes the length-prefixed encoding of fields, so ("ab","c") and
// ("a","bc") never produce the same input.
func Derive(fields ...string) Namespace {
	sum := sha256.Sum256([]byte(encode(fields)))
	return Namespace(hex.EncodeToString(sum[:]))
}

// Scope returns the fields identifying a document for a user.
// Anonymous users are scoped by filename alone.
func Scope(filename, userID string) []string {
	if userID == "" || userID == domain.AnonymousUser {
		return []string{filename}
	}
	return []string{filename, userID}
}

// For derives the namespace of filename as uploaded by userID.
func For(filename, userID string) Namespace {
	return Derive(Scope(filename, userID)...)
}

func encode(fields []string) string {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(strconv.Itoa(len(f)))
		b.WriteByte(':')
		b.WriteString(f)
	}
	return b.String()
}
