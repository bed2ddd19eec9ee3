package txqueue

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Registry is the in-memory set of queued transactions for a session.
// It is the only owner of entries: other components read copies and mutate
// through Add, UpdateStatus, Replace and Remove.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*record
	seq     uint64
	clock   Clock
}

type record struct {
	tx  QueuedTransaction
	seq uint64
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryClock sets the clock used for CreatedAt/UpdatedAt stamps.
func WithRegistryClock(c Clock) RegistryOption {
	return func(r *Registry) { r.clock = c }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries: make(map[string]*record),
		clock:   SystemClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add inserts a new entry. ID, CreatedAt and Status are filled in when empty.
func (r *Registry) Add(tx QueuedTransaction) (QueuedTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(tx)
}

func (r *Registry) addLocked(tx QueuedTransaction) (QueuedTransaction, error) {
	if tx.Hash == "" {
		return QueuedTransaction{}, fmt.Errorf("adding transaction: empty hash")
	}
	key := hashKey(tx.Hash)
	if _, exists := r.entries[key]; exists {
		return QueuedTransaction{}, fmt.Errorf("%w: %s", ErrDuplicateHash, tx.Hash)
	}
	if tx.Status == "" {
		tx.Status = StatusPending
	}
	if !tx.Status.Valid() {
		return QueuedTransaction{}, fmt.Errorf("adding transaction: unknown status %q", tx.Status)
	}
	if tx.Status == StatusPending {
		if holder := r.pendingAtLocked(tx.From, tx.Nonce); holder != nil {
			return QueuedTransaction{}, fmt.Errorf("%w: nonce %d held by %s", ErrNonceInUse, tx.Nonce, holder.tx.Hash)
		}
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := r.clock.Now()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	if tx.UpdatedAt.IsZero() {
		tx.UpdatedAt = tx.CreatedAt
	}
	r.seq++
	stored := tx.clone()
	r.entries[key] = &record{tx: stored, seq: r.seq}
	return stored.clone(), nil
}

// UpdateStatus moves an entry to status. Transitions out of a terminal state
// are rejected with ErrInvalidTransition and leave the entry unchanged.
func (r *Registry) UpdateStatus(hash string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("updating %s: unknown status %q", hash, status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.entries[hashKey(hash)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	if rec.tx.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, hash, rec.tx.Status)
	}
	if rec.tx.Status == status {
		return nil
	}
	rec.tx.Status = status
	rec.tx.UpdatedAt = r.clock.Now()
	return nil
}

// Replace supersedes oldHash with next in one step: the old entry is marked
// cancelled (when still pending) and next is inserted as pending at the same
// nonce. If the old entry already reached a terminal state the new entry is
// still recorded, since it has been broadcast.
func (r *Registry) Replace(oldHash string, next QueuedTransaction) (QueuedTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.entries[hashKey(oldHash)]
	if !ok {
		return QueuedTransaction{}, fmt.Errorf("%w: %s", ErrNotFound, oldHash)
	}
	if _, exists := r.entries[hashKey(next.Hash)]; exists {
		return QueuedTransaction{}, fmt.Errorf("%w: %s", ErrDuplicateHash, next.Hash)
	}

	prevStatus := old.tx.Status
	if prevStatus == StatusPending {
		old.tx.Status = StatusCancelled
	}
	next.Status = StatusPending
	added, err := r.addLocked(next)
	if err != nil {
		old.tx.Status = prevStatus
		return QueuedTransaction{}, err
	}
	old.tx.ReplacedBy = added.Hash
	old.tx.UpdatedAt = r.clock.Now()
	return added, nil
}

// Remove dismisses an entry regardless of its on-chain status.
// Record adds a transaction the node has already accepted. A pending entry
// still holding the same sender and nonce was dropped by the node, so it is
// marked cancelled and linked to tx. The superseded hash is returned, or ""
// when the nonce was free.
func (r *Registry) Record(tx QueuedTransaction) (QueuedTransaction, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[hashKey(tx.Hash)]; exists {
		return QueuedTransaction{}, "", fmt.Errorf("%w: %s", ErrDuplicateHash, tx.Hash)
	}
	tx.Status = StatusPending
	stale := r.pendingAtLocked(tx.From, tx.Nonce)
	if stale != nil {
		stale.tx.Status = StatusCancelled
	}
	added, err := r.addLocked(tx)
	if err != nil {
		if stale != nil {
			stale.tx.Status = StatusPending
		}
		return QueuedTransaction{}, "", err
	}
	if stale == nil {
		return added, "", nil
	}
	stale.tx.ReplacedBy = added.Hash
	stale.tx.UpdatedAt = r.clock.Now()
	return added, stale.tx.Hash, nil
}

func (r *Registry) Remove(hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := hashKey(hash)
	if _, ok := r.entries[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	delete(r.entries, key)
	return nil
}

// Get returns a copy of the entry with the given hash.
func (r *Registry) Get(hash string) (QueuedTransaction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.entries[hashKey(hash)]
	if !ok {
		return QueuedTransaction{}, false
	}
	return rec.tx.clone(), true
}

// Stats counts entries per status.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var s Stats
	for _, rec := range r.entries {
		switch rec.tx.Status {
		case StatusPending:
			s.Pending++
		case StatusConfirmed:
			s.Confirmed++
		case StatusFailed:
			s.Failed++
		case StatusCancelled:
			s.Cancelled++
		}
	}
	s.Total = len(r.entries)
	return s
}

// List returns every entry, newest first.
func (r *Registry) List() []QueuedTransaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked(func(*record) bool { return true })
}

// Pending returns the entries still awaiting a receipt, newest first.
func (r *Registry) Pending() []QueuedTransaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked(func(rec *record) bool { return rec.tx.Status == StatusPending })
}

// Restore loads a previously saved snapshot into an empty registry. Entries
// are inserted oldest first so List keeps the saved order.
func (r *Registry) Restore(entries []QueuedTransaction) error {
	ordered := append([]QueuedTransaction(nil), entries...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) > 0 {
		return fmt.Errorf("restoring queue: registry is not empty")
	}
	for _, tx := range ordered {
		if _, err := r.addLocked(tx); err != nil {
			r.entries = make(map[string]*record)
			return fmt.Errorf("restoring queue: %w", err)
		}
	}
	return nil
}

func (r *Registry) sortedLocked(keep func(*record) bool) []QueuedTransaction {
	recs := make([]*record, 0, len(r.entries))
	for _, rec := range r.entries {
		if keep(rec) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.tx.CreatedAt.Equal(b.tx.CreatedAt) {
			return a.tx.CreatedAt.After(b.tx.CreatedAt)
		}
		return a.seq > b.seq
	})
	out := make([]QueuedTransaction, len(recs))
	for i, rec := range recs {
		out[i] = rec.tx.clone()
	}
	return out
}

func (r *Registry) pendingAtLocked(from string, nonce uint64) *record {
	for _, rec := range r.entries {
		if rec.tx.Status == StatusPending && rec.tx.Nonce == nonce && strings.EqualFold(rec.tx.From, from) {
			return rec
		}
	}
	return nil
}

func hashKey(h string) string { return strings.ToLower(h) }
