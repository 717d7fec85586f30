package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Common limiter errors
var (
	ErrLimiterClosed     = errors.New("rate limiter is closed")
	ErrAcquireExceedsCap = errors.New("requested tokens exceed bucket capacity")
)

// acquireRequest is one caller waiting for tokens. Requests are served
// strictly in arrival order so no waiter is outrun by newer arrivals.
type acquireRequest struct {
	ctx     context.Context
	n       float64
	granted chan error
}

// TokenBucket is the process-wide rate limiter guarding calls into the
// external analysis service. Tokens refill continuously at refillRate up to
// capacity; Acquire suspends the caller until the requested tokens are
// available or its context is cancelled. Shared across all workers so the
// aggregate external-call rate stays within quota regardless of worker count.
type TokenBucket struct {
	capacity   float64
	refillRate float64 // tokens per second

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	closed     bool

	requests chan *acquireRequest
	done     chan struct{}
	wg       sync.WaitGroup

	// now is the clock; replaceable in tests.
	now func() time.Time
}

// NewTokenBucket creates a token bucket with the given burst capacity and
// sustained refill rate (tokens per second), and starts its dispatcher.
// The bucket starts full.
func NewTokenBucket(capacity int, refillRate float64) (*TokenBucket, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("token bucket capacity must be positive, got %d", capacity)
	}
	if refillRate <= 0 {
		return nil, fmt.Errorf("token bucket refill rate must be positive, got %f", refillRate)
	}

	b := &TokenBucket{
		capacity:   float64(capacity),
		refillRate: refillRate,
		tokens:     float64(capacity),
		lastRefill: time.Now(),
		requests:   make(chan *acquireRequest, 1024),
		done:       make(chan struct{}),
		now:        time.Now,
	}

	b.wg.Add(1)
	go b.dispatch()

	return b, nil
}

// Acquire blocks until n tokens are available, then takes them. Waiters are
// served in arrival order. Returns the context error if ctx is cancelled
// while waiting, or ErrLimiterClosed once Close has been called.
func (b *TokenBucket) Acquire(ctx context.Context, n int) error {
	if float64(n) > b.capacity {
		return fmt.Errorf("%w: requested %d, capacity %.0f", ErrAcquireExceedsCap, n, b.capacity)
	}

	req := &acquireRequest{
		ctx:     ctx,
		n:       float64(n),
		granted: make(chan error, 1),
	}

	select {
	case b.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrLimiterClosed
	}

	select {
	case err := <-req.granted:
		return err
	case <-ctx.Done():
		// The dispatcher also watches req.ctx, so an abandoned request
		// never holds up the queue.
		return ctx.Err()
	}
}

// Close shuts the limiter down. Pending and future waiters receive
// ErrLimiterClosed.
func (b *TokenBucket) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.done)
	b.wg.Wait()
}

// dispatch serves acquire requests one at a time, in arrival order.
func (b *TokenBucket) dispatch() {
	defer b.wg.Done()

	for {
		select {
		case <-b.done:
			b.drainPending()
			return
		case req := <-b.requests:
			b.serve(req)
		}
	}
}

// serve waits until req's tokens are available, then grants them. A request
// whose context is cancelled while at the head of the queue is skipped.
func (b *TokenBucket) serve(req *acquireRequest) {
	for {
		if err := req.ctx.Err(); err != nil {
			req.granted <- err
			return
		}

		wait := b.take(req.n)
		if wait <= 0 {
			req.granted <- nil
			return
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-req.ctx.Done():
			timer.Stop()
			req.granted <- req.ctx.Err()
			return
		case <-b.done:
			timer.Stop()
			req.granted <- ErrLimiterClosed
			return
		}
	}
}

// take refills the bucket and, if n tokens are available, consumes them and
// returns zero. Otherwise it returns how long until they will be.
func (b *TokenBucket) take(n float64) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.lastRefill = now
	}

	if b.tokens >= n {
		b.tokens -= n
		return 0
	}

	missing := n - b.tokens
	return time.Duration(missing / b.refillRate * float64(time.Second))
}

// drainPending fails every queued request after Close.
func (b *TokenBucket) drainPending() {
	for {
		select {
		case req := <-b.requests:
			req.granted <- ErrLimiterClosed
		default:
			return
		}
	}
}
