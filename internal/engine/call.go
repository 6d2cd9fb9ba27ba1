package engine

import (
	"context"

	"github.com/video-stream/transcut/internal/progress"
)

// Call is the handle of one submitted request. Its event channel carries
// progress, partial results and a final event, then closes.
type Call struct {
	ID   string
	Kind Kind

	payload     any
	ctx         context.Context
	cancel      context.CancelFunc
	events      <-chan progress.Event
	unsubscribe func()

	done   chan struct{}
	result Result
	err    error
}

// Events returns the call's event stream.
func (c *Call) Events() <-chan progress.Event { return c.events }

// Done is closed when the call has finished.
func (c *Call) Done() <-chan struct{} { return c.done }

// Cancel asks the worker to stop the call. A queued call never starts.
func (c *Call) Cancel() { c.cancel() }

// Wait blocks until the call finishes.
func (c *Call) Wait() (Result, error) {
	<-c.done
	return c.result, c.err
}

func (c *Call) finish(res Result, err error) {
	c.result = res
	c.err = err
	c.cancel()
	close(c.done)
}
