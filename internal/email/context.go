package email

import (
	"context"
	"time"
)

// newEmailContext bounds a single reminder send. It is detached from the
// scheduler job's context so an in-flight send runs to its own timeout.
func newEmailContext(parent context.Context, sendTimeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(parent), sendTimeout)
}
