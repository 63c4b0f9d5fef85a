package utils

import (
	"sync"
	"time"
	_ "time/tzdata"
)

const timestampLayout = "2006-01-02 15:04:05"

var (
	locMu sync.RWMutex
	loc   = time.UTC
)

// SetLocation sets the display timezone. An unknown name leaves UTC in place
// and returns the lookup error.
func SetLocation(name string) error {
	l, err := time.LoadLocation(name)
	if err != nil {
		return err
	}

	locMu.Lock()
	loc = l
	locMu.Unlock()
	return nil
}

// Location returns the display timezone
func Location() *time.Location {
	locMu.RLock()
	defer locMu.RUnlock()
	return loc
}

// FormatTimestamp renders t in the display timezone
func FormatTimestamp(t time.Time) string {
	return t.In(Location()).Format(timestampLayout)
}
