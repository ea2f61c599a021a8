package memory

import (
	"context"
	"sync"
)

// lockManager hands out exclusive keyed locks. Each key is a one-slot
// semaphore so waiters can give up when their context ends.
type lockManager struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newLockManager() *lockManager {
	return &lockManager{slots: make(map[string]chan struct{})}
}

func (m *lockManager) slot(key string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		m.slots[key] = ch
	}
	return ch
}

func (m *lockManager) acquire(ctx context.Context, key string) error {
	slot := m.slot(key)
	select {
	case slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *lockManager) release(key string) {
	<-m.slot(key)
}

func balanceLockKey(storeID, productID string) string {
	return "balance:" + storeID + ":" + productID
}

func saleLockKey(saleID string) string {
	return "sale:" + saleID
}

func invoiceLockKey(invoiceID string) string {
	return "invoice:" + invoiceID
}
