package payroll

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// SlipReference renders SLIP-{YYYYMM}-{employeeID}-{hash8}. The hash is taken
// over the slip ID so regenerations after a cancellation get a new reference.
func SlipReference(period Period, employeeID int64, slipID string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", period.Compact(), employeeID, slipID)))
	return fmt.Sprintf("SLIP-%s-%d-%s", period.Compact(), employeeID, hex.EncodeToString(sum[:])[:8])
}

// keyedMutex serializes work per key and drops idle entries.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedLock{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func slipKey(employeeID int64, period Period) string {
	return fmt.Sprintf("%d:%s", employeeID, period.Compact())
}
