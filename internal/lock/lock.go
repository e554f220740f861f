// Package lock serializes work on a shared key across goroutines and, with
// the redis implementation, across processes.
package lock

import (
	"context"
	"errors"
	"strconv"
	"time"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Locker acquires an exclusive lease on key. Acquire blocks until the lease is
// held or ctx is done. The returned release func is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// CredentialRefreshKey is the lease key guarding token refresh of one credential.
func CredentialRefreshKey(credentialID int64) string {
	return "credential:refresh:" + strconv.FormatInt(credentialID, 10)
}
