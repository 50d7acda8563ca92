package db

import (
	"context"
)

type advisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error)
}

// Locker guards auto-assignment runs with a postgres advisory lock, so
// only one run proceeds across every service instance.
type Locker struct {
	db  advisoryLocker
	key int64
}

func NewLocker(db advisoryLocker, key int64) *Locker {
	return &Locker{db: db, key: key}
}

func (l *Locker) TryLock(ctx context.Context) (func(), bool, error) {
	return l.db.TryAdvisoryLock(ctx, l.key)
}
