package testutil

import (
	"context"
	"testing"
	"time"
)

// NewTestContext returns a context cancelled after 5 seconds or when the test
// ends, whichever comes first.
func NewTestContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	return ctx
}
