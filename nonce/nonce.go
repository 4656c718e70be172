// Package nonce hands out per-sender transaction nonces. Within one process
// allocations for a sender are FIFO-ordered and strictly increasing; a race
// with another process surfaces as a broadcast failure, after which the floor
// is re-read from the chain.
package nonce

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Source is the slice of the RPC surface the allocator needs: the committed
// nonce of an address.
type Source interface {
	GetNonce(ctx context.Context, address string) (uint64, error)
}

type state struct {
	// lock is a single-token channel. Blocked senders queue in FIFO order,
	// which gives allocate its ordering guarantee.
	lock chan struct{}
	next *uint64
}

// Allocator assigns nonces per sender address.
type Allocator struct {
	src Source

	mu     sync.Mutex
	states map[string]*state
}

func NewAllocator(src Source) *Allocator {
	return &Allocator{
		src:    src,
		states: make(map[string]*state),
	}
}

func (a *Allocator) stateFor(sender string) *state {
	key := strings.ToLower(sender)
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.states[key]
	if !ok {
		st = &state{lock: make(chan struct{}, 1)}
		a.states[key] = st
	}
	return st
}

// Allocate returns the next nonce for sender. The first allocation for an
// address reads the committed nonce from the chain and starts at committed+1.
// The critical section is held across that one RPC call and nothing else.
func (a *Allocator) Allocate(ctx context.Context, sender string) (uint64, error) {
	st := a.stateFor(sender)

	select {
	case st.lock <- struct{}{}:
	case <-ctx.Done():
		return 0, errors.Wrap(ctx.Err(), "nonce allocation")
	}
	defer func() { <-st.lock }()

	if st.next == nil {
		committed, err := a.src.GetNonce(ctx, sender)
		if err != nil {
			return 0, errors.Wrap(err, "committed nonce")
		}
		floor := committed + 1
		st.next = &floor
	}

	n := *st.next
	*st.next = n + 1
	return n, nil
}

// BumpFloor raises the floor so the next allocation returns at least
// committed+1. Lower floors are ignored; the counter never moves backwards.
func (a *Allocator) BumpFloor(sender string, committed uint64) {
	st := a.stateFor(sender)

	st.lock <- struct{}{}
	defer func() { <-st.lock }()

	floor := committed + 1
	if st.next == nil || *st.next < floor {
		st.next = &floor
	}
}

// Reset forgets the in-memory floor for sender; the next Allocate re-reads
// the committed nonce from the chain.
func (a *Allocator) Reset(sender string) {
	st := a.stateFor(sender)
	st.lock <- struct{}{}
	defer func() { <-st.lock }()
	st.next = nil
}
