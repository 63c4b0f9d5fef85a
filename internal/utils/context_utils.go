package utils

import (
	"context"
	"time"
)

// CommitTimeout bounds writes that run after an earlier write has committed
const CommitTimeout = 5 * time.Second

// Detach keeps parent's values but not its cancellation, bounded by timeout.
// Follow-up writes to a committed balance change run on it.
func Detach(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), timeout)
}
