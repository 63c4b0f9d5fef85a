package service

import (
	"bytes"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// AccountLocker serializes balance mutations per user id within the process.
// Locks are reference counted and dropped once no goroutine holds or waits on them.
type AccountLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

// NewAccountLocker creates an empty locker
func NewAccountLocker() *AccountLocker {
	return &AccountLocker{locks: make(map[uuid.UUID]*accountLock)}
}

// Lock acquires the locks for ids in a fixed order, so two callers locking
// the same pair of accounts cannot deadlock. The returned func releases them.
func (l *AccountLocker) Lock(ids ...uuid.UUID) (unlock func()) {
	ordered := uniqueSorted(ids)

	held := make([]*accountLock, 0, len(ordered))
	for _, id := range ordered {
		al := l.acquire(id)
		al.mu.Lock()
		held = append(held, al)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				l.release(ordered[i])
			}
		})
	}
}

func (l *AccountLocker) acquire(id uuid.UUID) *accountLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	al, ok := l.locks[id]
	if !ok {
		al = &accountLock{}
		l.locks[id] = al
	}
	al.refs++
	return al
}

func (l *AccountLocker) release(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	al := l.locks[id]
	al.refs--
	if al.refs == 0 {
		delete(l.locks, id)
	}
}

// size returns the number of live lock entries
func (l *AccountLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func uniqueSorted(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
