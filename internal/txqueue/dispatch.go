package txqueue

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"
)

// Draft describes a one-off transaction before it has a nonce or gas price.
type Draft struct {
	To          string
	Value       *big.Int
	GasLimit    uint64
	Data        []byte
	Kind        Kind
	Description string
}

// Dispatcher sends single transactions for an account. Each send holds the
// account's nonce lease, so it never interleaves with a running batch.
type Dispatcher struct {
	registry *Registry
	alloc    *Allocator
	submit   Submitter
	gas      GasOracle
	account  string
	log      *zap.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = l }
}

// NewDispatcher creates a Dispatcher signing as account.
func NewDispatcher(registry *Registry, alloc *Allocator, submit Submitter, gas GasOracle, account string, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		alloc:    alloc,
		submit:   submit,
		gas:      gas,
		account:  account,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Account returns the sending account.
func (d *Dispatcher) Account() string { return d.account }

// Send reserves the next nonce, prices the draft at the network gas price,
// submits it and records the pending entry. Nothing is recorded when the
// submission fails, and the nonce is handed back.
func (d *Dispatcher) Send(ctx context.Context, draft Draft) (QueuedTransaction, error) {
	if strings.TrimSpace(draft.To) == "" {
		return QueuedTransaction{}, fmt.Errorf("sending transaction: empty recipient")
	}
	if draft.GasLimit == 0 {
		return QueuedTransaction{}, fmt.Errorf("sending transaction: zero gas limit")
	}
	value := draft.Value
	if value == nil {
		value = new(big.Int)
	}
	kind := draft.Kind
	if kind == "" {
		kind = KindTransfer
	}

	lease, err := d.alloc.Lease(ctx, d.account, 1)
	if err != nil {
		return QueuedTransaction{}, fmt.Errorf("reserving nonce: %w", err)
	}
	used := 0
	defer func() { lease.Release(used) }()

	gasPrice, err := d.gas.GasPrice(ctx)
	if err != nil {
		return QueuedTransaction{}, fmt.Errorf("%w: gas price: %w", ErrTransientQuery, err)
	}

	nonce := lease.Nonce(0)
	hash, err := d.submit.Submit(ctx, TxRequest{
		To:       draft.To,
		Value:    value,
		GasPrice: gasPrice,
		GasLimit: draft.GasLimit,
		Nonce:    nonce,
		Data:     draft.Data,
	})
	if err != nil {
		if IsNonceTooLow(err) {
			// Another client used the nonce; rebase on the chain count next time.
			lease.Release(0)
			d.alloc.Reset(d.account)
		}
		return QueuedTransaction{}, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	used = 1

	added, stale, err := d.registry.Record(QueuedTransaction{
		Hash:        hash,
		From:        d.account,
		Nonce:       nonce,
		To:          draft.To,
		Value:       value,
		GasPrice:    gasPrice,
		GasLimit:    draft.GasLimit,
		Data:        draft.Data,
		Kind:        kind,
		Description: draft.Description,
	})
	if err != nil {
		return QueuedTransaction{}, fmt.Errorf("recording %s: %w", hash, err)
	}
	if stale != "" {
		d.log.Warn("superseded queued transaction the node no longer holds",
			zap.String("stale", stale), zap.Uint64("nonce", nonce))
	}

	d.log.Info("transaction sent",
		zap.String("hash", hash),
		zap.Uint64("nonce", nonce),
		zap.String("gas_price", gasPrice.String()),
		zap.String("kind", string(kind)),
	)
	return added, nil
}

// IsNonceTooLow reports whether a broadcast was rejected because the nonce
// was already used on chain.
func IsNonceTooLow(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "nonce too low")
}
