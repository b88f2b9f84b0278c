// Package ids generates the identifiers stamped on bus messages and HTTP requests.
package ids

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// CreateULID returns a time-sortable ULID encoded as a 26-character string.
// It is used as the UUID of every message published on the bus.
func CreateULID() string {
	return next(time.Now()).String()
}

// NewRequestID returns a lower-cased ULID suitable for the X-Request-Id header.
func NewRequestID() string {
	return strings.ToLower(CreateULID())
}

// Timestamp extracts the creation time encoded in id.
func Timestamp(id string) (time.Time, error) {
	parsed, err := ulid.ParseStrict(strings.ToUpper(id))
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}

func next(at time.Time) ulid.ULID {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), entropy)
}
