// Package ids mints the identifiers used as storage keys. ULIDs sort by
// creation time, which keeps org, invoice and audit-event listings cheap to
// order without a secondary index.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu  sync.Mutex
	gen = ulid.Monotonic(rand.Reader, 0)
)

// New returns a fresh ULID string.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), gen).String()
}
