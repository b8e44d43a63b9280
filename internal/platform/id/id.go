// Package id generates unique identifiers for persisted entities.
package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// NewID returns a 26-character ULID: time-ordered, lexicographically sortable,
// and generated client-side so ids never leak row counts the way serial
// integers do.
func NewID() (string, error) {
	u, err := ulid.New(ulid.Now(), rand.Reader)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
