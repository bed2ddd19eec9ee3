package txqueue

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Allocator hands out nonces for an account.
//
// ReserveRange is the raw operation and does no coordination; Lease wraps it
// in a per-account lock so that a running batch and a manual transaction
// never draw from the same nonce space at the same time.
type Allocator struct {
	source NonceSource

	mu     sync.Mutex
	next   map[string]uint64        // account -> one past the highest nonce handed out
	leases map[string]chan struct{} // account -> single-slot lease
}

// NewAllocator creates an Allocator that reads its baseline from source.
func NewAllocator(source NonceSource) *Allocator {
	return &Allocator{
		source: source,
		next:   make(map[string]uint64),
		leases: make(map[string]chan struct{}),
	}
}

// ReserveRange returns the first of count contiguous nonces for account.
// The baseline is the chain's transaction count, raised to the local
// high-water mark when earlier reservations are not yet visible on chain.
func (a *Allocator) ReserveRange(ctx context.Context, account string, count int) (uint64, error) {
	if count <= 0 {
		return 0, fmt.Errorf("reserving nonces: count must be positive, got %d", count)
	}
	onChain, err := a.source.TransactionCount(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("%w: transaction count for %s: %w", ErrTransientQuery, account, err)
	}

	key := accountKey(account)
	a.mu.Lock()
	defer a.mu.Unlock()
	base := onChain
	if local, ok := a.next[key]; ok && local > base {
		base = local
	}
	a.next[key] = base + uint64(count)
	return base, nil
}

// Lease is an exclusive hold on an account's nonce space covering
// [Base, Base+Count).
type Lease struct {
	Account string
	Base    uint64
	Count   int

	alloc *Allocator
	once  sync.Once
}

// Nonce returns the i-th nonce of the lease.
func (l *Lease) Nonce(i int) uint64 { return l.Base + uint64(i) }

// Release gives the account back. used is how many nonces of the range were
// actually broadcast; the rest are returned so the next reservation starts
// right after the last used one. Calling Release more than once is a no-op.
func (l *Lease) Release(used int) {
	l.once.Do(func() {
		if used < 0 {
			used = 0
		}
		if used > l.Count {
			used = l.Count
		}
		l.alloc.release(l.Account, l.Base+uint64(used))
	})
}

// Lease waits for exclusive use of account's nonce space, then reserves count
// nonces. The caller must Release the lease.
func (a *Allocator) Lease(ctx context.Context, account string, count int) (*Lease, error) {
	slot := a.slot(account)
	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	base, err := a.ReserveRange(ctx, account, count)
	if err != nil {
		<-slot
		return nil, err
	}
	return &Lease{Account: account, Base: base, Count: count, alloc: a}, nil
}

func (a *Allocator) slot(account string) chan struct{} {
	key := accountKey(account)
	a.mu.Lock()
	defer a.mu.Unlock()
	ch, ok := a.leases[key]
	if !ok {
		ch = make(chan struct{}, 1)
		a.leases[key] = ch
	}
	return ch
}

func (a *Allocator) release(account string, next uint64) {
	key := accountKey(account)
	a.mu.Lock()
	a.next[key] = next
	ch := a.leases[key]
	a.mu.Unlock()
	<-ch
}

// Reset forgets the local high-water mark for account, e.g. after the user
// sent transactions from another client.
func (a *Allocator) Reset(account string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.next, accountKey(account))
}

func accountKey(a string) string { return strings.ToLower(a) }
