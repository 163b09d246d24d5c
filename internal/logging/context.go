package logging

import (
	"context"
	"time"
)

// DetachContextWithTimeout creates a context that survives cancellation of
// parent but carries its own deadline. Session close uses it so a snapshot
// write completes after the HTTP client goes away.
func DetachContextWithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), timeout)
}
