package sla

import (
	"context"
	"sync/atomic"
)

// ScanLock prevents overlapping scans. TryAcquire never blocks: it reports
// acquired=false when another scan holds the lock.
type ScanLock interface {
	TryAcquire(ctx context.Context) (release func(), acquired bool, err error)
}

// LocalLock is a ScanLock for a single process.
type LocalLock struct {
	held atomic.Bool
}

// NewLocalLock creates an in-process scan lock.
func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

// TryAcquire implements ScanLock.
func (l *LocalLock) TryAcquire(_ context.Context) (func(), bool, error) {
	if !l.held.CompareAndSwap(false, true) {
		return nil, false, nil
	}
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			l.held.Store(false)
		}
	}, true, nil
}
