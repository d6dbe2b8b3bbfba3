package relay

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc"
)

/* Background tracks fire-and-forget forwards
 * The HTTP response is written before these run, so the process must
 * call Wait before exiting or the forward is lost
 */
type Background struct {
	wg conc.WaitGroup
}

// NewBackground creates an empty runner
func NewBackground() *Background {
	return &Background{}
}

// Go runs f in a tracked goroutine. Panics are held until Wait.
func (b *Background) Go(f func()) {
	b.wg.Go(f)
}

// Wait blocks until every tracked goroutine returned or ctx is done
func (b *Background) Wait(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		if r := b.wg.WaitAndRecover(); r != nil {
			done <- fmt.Errorf("background forward panicked: %v", r.Value)
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for background forwards: %w", ctx.Err())
	}
}
