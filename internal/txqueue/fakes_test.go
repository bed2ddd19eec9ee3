package txqueue

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

const (
	testAccount   = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testRecipient = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

var errBroadcast = errors.New("insufficient funds for gas * price + value")

// fakeClock advances by the requested duration whenever After is called.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.Advance(d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

// fakeSubmitter records every request and returns sequential hashes.
type fakeSubmitter struct {
	mu      sync.Mutex
	reqs    []TxRequest
	failAt  int   // 1-based call number that fails; 0 = never
	failErr error // returned at failAt; errBroadcast when nil
	hook    func(n int)
}

func (s *fakeSubmitter) Submit(_ context.Context, req TxRequest) (string, error) {
	s.mu.Lock()
	n := len(s.reqs) + 1
	hook := s.hook
	if s.failAt == n {
		s.mu.Unlock()
		if s.failErr != nil {
			return "", s.failErr
		}
		return "", errBroadcast
	}
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return fmt.Sprintf("0x%064x", 0xabc000+n), nil
}

func (s *fakeSubmitter) requests() []TxRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TxRequest(nil), s.reqs...)
}

type fakeGas struct {
	price *big.Int
	err   error
	calls int
}

func (g *fakeGas) GasPrice(context.Context) (*big.Int, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return new(big.Int).Set(g.price), nil
}

type fakeNonces struct {
	count uint64
	err   error
}

func (n *fakeNonces) TransactionCount(context.Context, string) (uint64, error) {
	return n.count, n.err
}

// fakeReceipts serves receipts by hash; errs takes precedence.
type fakeReceipts struct {
	mu       sync.Mutex
	receipts map[string]*Receipt
	errs     map[string]error
	calls    map[string]int
}

func newFakeReceipts() *fakeReceipts {
	return &fakeReceipts{
		receipts: make(map[string]*Receipt),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeReceipts) TransactionReceipt(_ context.Context, hash string) (*Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[hash]++
	if err, ok := f.errs[hash]; ok {
		return nil, err
	}
	return f.receipts[hash], nil
}

func pendingTx(hash string, nonce uint64) QueuedTransaction {
	return QueuedTransaction{
		Hash:        hash,
		From:        testAccount,
		Nonce:       nonce,
		To:          testRecipient,
		Value:       big.NewInt(1000),
		GasPrice:    big.NewInt(100),
		GasLimit:    21000,
		Kind:        KindTransfer,
		Description: "test transfer",
	}
}
