// Package holdstore models the expiring key-value store used as the
// primary, low-latency hold expiry mechanism.  Keys vanish on their own
// at TTL expiry; the durable hold ledger remains the source of truth
// and the sweeper never reads this store.  The interface is small on
// purpose so the hold service stays agnostic to the backing technology.
package holdstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNonPositiveTTL is returned by Set when the requested lifetime is
// zero or negative.
var ErrNonPositiveTTL = errors.New("ttl must be positive")

// ExpiringStore is the contract the hold service writes TTL entries
// against.  Set requires a positive ttl; a key must never persist
// forever nor be born expired, so implementations reject anything else
// with ErrNonPositiveTTL.  Delete of a missing key is a no-op.
type ExpiringStore interface {
	Set(ctx context.Context, key string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Key builds the store key for one held unit.
func Key(layoutID uint64, unitUID string) string {
	return fmt.Sprintf("hold:%d:%s", layoutID, unitUID)
}
