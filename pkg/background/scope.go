package background

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrScopeCancelled - returned by Scope.Go when the scope no longer accepts workers.
var ErrScopeCancelled = errors.New("background.Scope: cancelled")

// Scope - abstract concurrency scope.
// Workers registered in the scope share its context and may be awaited as a group.
// Bounded scope additionally limits the number of simultaneously running workers.
type Scope struct {
	ctx       context.Context
	ctxCancel context.CancelFunc
	mu        sync.Mutex
	scope     sync.WaitGroup
	slots     chan struct{}
}

// NewScope - concurrency scope builder.
// Returned cancel func stops the scope and waits for all registered workers.
func NewScope() (scope *Scope, cancel func()) {
	s := newScope(nil)
	return s, s.cancelAndWait
}

// NewBoundedScope - builds scope which runs no more than limit workers at once via Go.
// Zero limit means unbounded.
func NewBoundedScope(limit int) (scope *Scope, cancel func(), err error) {
	if limit < 0 {
		return nil, nil, fmt.Errorf("background.NewBoundedScope: invalid limit (%d)", limit)
	}
	var slots chan struct{}
	if limit > 0 {
		slots = make(chan struct{}, limit)
	}
	s := newScope(slots)
	return s, s.cancelAndWait, nil
}

func newScope(slots chan struct{}) *Scope {
	ctx, cancelFunc := context.WithCancel(context.Background())
	return &Scope{
		ctx:       ctx,
		ctxCancel: cancelFunc,
		slots:     slots,
	}
}

// Context - return background context
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Add - notifies scope to register processes/workers/layers.
// Based on sync.WaitGroup.
func (s *Scope) Add(delta int) {
	s.scope.Add(delta)
}

// Done - notifies scope when process/worker/layer is done.
// Based on sync.WaitGroup.
func (s *Scope) Done() {
	s.scope.Done()
}

// Go - runs f in a new goroutine registered in the scope.
// For bounded scope it blocks until a free slot is available.
// Returns ErrScopeCancelled if the scope was cancelled before f could start.
func (s *Scope) Go(f func(ctx context.Context)) error {
	if s.slots != nil {
		select {
		case s.slots <- struct{}{}:
		case <-s.ctx.Done():
			return ErrScopeCancelled
		}
	}
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		s.release()
		return ErrScopeCancelled
	}
	s.scope.Add(1)
	s.mu.Unlock()

	go func() {
		defer func() {
			s.release()
			s.scope.Done()
		}()
		f(s.ctx)
	}()
	return nil
}

func (s *Scope) release() {
	if s.slots != nil {
		<-s.slots
	}
}

// Running - returns number of workers started with Go which are still running.
// Always 0 for unbounded scope.
func (s *Scope) Running() int {
	return len(s.slots)
}

// Cancel - cancels scope context, Go will not start new workers after that.
// It does not wait for running workers.
func (s *Scope) Cancel() {
	s.mu.Lock()
	s.ctxCancel()
	s.mu.Unlock()
}

// Wait - blocks until all registered workers are done.
func (s *Scope) Wait() {
	s.scope.Wait()
}

// WaitTimeout - waits for all registered workers no longer than timeout.
// Returns false if the timeout expired first.
func (s *Scope) WaitTimeout(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.scope.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (s *Scope) cancelAndWait() {
	s.Cancel()
	s.Wait()
}
