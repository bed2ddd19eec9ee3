package txqueue

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// BatchGasLimit is the gas limit of each native transfer in a batch.
const BatchGasLimit = uint64(21_000)

// DefaultBatchGrace is how long a finished batch stays visible via Current.
const DefaultBatchGrace = 3 * time.Second

// BatchState is the lifecycle state of the Batch Sender.
type BatchState string

const (
	BatchIdle      BatchState = "idle"
	BatchRunning   BatchState = "running"
	BatchCompleted BatchState = "completed"
	BatchStopped   BatchState = "stopped"
	BatchFailed    BatchState = "failed"
)

// BatchConfig describes a rapid batch: Count transfers of Amount wei to
// Recipient, Delay apart.
type BatchConfig struct {
	Recipient string
	Amount    *big.Int
	Count     int
	Delay     time.Duration

	// AmountLabel is the human amount used in entry descriptions, e.g.
	// "0.001". Defaults to the wei value.
	AmountLabel string
}

func (c BatchConfig) validate() error {
	switch {
	case c.Count <= 0:
		return fmt.Errorf("%w: count must be positive, got %d", ErrInvalidBatch, c.Count)
	case strings.TrimSpace(c.Recipient) == "":
		return fmt.Errorf("%w: recipient is required", ErrInvalidBatch)
	case c.Amount == nil || c.Amount.Sign() < 0:
		return fmt.Errorf("%w: amount must be zero or positive", ErrInvalidBatch)
	case c.Delay < 0:
		return fmt.Errorf("%w: delay must not be negative", ErrInvalidBatch)
	}
	return nil
}

// RapidBatch is a snapshot of the batch in progress.
type RapidBatch struct {
	Config    BatchConfig
	Completed int
	Total     int
	BaseNonce uint64
	StartTime time.Time
	State     BatchState
	Hashes    []string
	Err       error
}

// EstimateRemaining projects the time left from the average time per
// submission so far plus the configured delays still to wait.
func (b RapidBatch) EstimateRemaining(now time.Time) time.Duration {
	remaining := b.Total - b.Completed
	if remaining <= 0 {
		return 0
	}
	done := b.Completed
	if done < 1 {
		done = 1
	}
	avg := now.Sub(b.StartTime) / time.Duration(done)
	return time.Duration(remaining)*avg + time.Duration(remaining)*b.Config.Delay
}

// BatchSender sends rapid batches over a reserved nonce range and records
// every submission in the Registry.
type BatchSender struct {
	registry *Registry
	alloc    *Allocator
	submit   Submitter
	gas      GasOracle
	account  string
	clock    Clock
	grace    time.Duration
	log      *zap.Logger
	progress func(RapidBatch)

	stop atomic.Bool

	mu         sync.Mutex
	state      BatchState
	current    *RapidBatch
	finishedAt time.Time
}

// BatchOption configures a BatchSender.
type BatchOption func(*BatchSender)

// WithBatchClock sets the clock used for delays and timestamps.
func WithBatchClock(c Clock) BatchOption {
	return func(b *BatchSender) { b.clock = c }
}

// WithGrace sets how long a finished batch remains visible.
func WithGrace(d time.Duration) BatchOption {
	return func(b *BatchSender) { b.grace = d }
}

// WithBatchLogger sets the logger.
func WithBatchLogger(l *zap.Logger) BatchOption {
	return func(b *BatchSender) { b.log = l }
}

// OnProgress registers a hook called after every registered submission.
func OnProgress(fn func(RapidBatch)) BatchOption {
	return func(b *BatchSender) { b.progress = fn }
}

// NewBatchSender creates a BatchSender for account.
func NewBatchSender(registry *Registry, alloc *Allocator, submit Submitter, gas GasOracle, account string, opts ...BatchOption) *BatchSender {
	b := &BatchSender{
		registry: registry,
		alloc:    alloc,
		submit:   submit,
		gas:      gas,
		account:  account,
		clock:    SystemClock(),
		grace:    DefaultBatchGrace,
		log:      zap.NewNop(),
		state:    BatchIdle,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current lifecycle state.
func (b *BatchSender) State() BatchState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Current returns the batch in progress, or the last one while its grace
// period lasts.
func (b *BatchSender) Current() (RapidBatch, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return RapidBatch{}, false
	}
	if b.state != BatchRunning && b.clock.Now().Sub(b.finishedAt) >= b.grace {
		b.current = nil
		return RapidBatch{}, false
	}
	snap := *b.current
	snap.Hashes = append([]string(nil), b.current.Hashes...)
	return snap, true
}

// Stop asks a running batch to stop before its next submission. A
// submission already dispatched is not retracted. It reports whether a
// batch was running.
func (b *BatchSender) Stop() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != BatchRunning {
		return false
	}
	b.stop.Store(true)
	b.current = nil
	return true
}

// Start runs a batch to completion and returns its final snapshot. It blocks
// until the last submission, a Stop, a failure, or ctx is done.
func (b *BatchSender) Start(ctx context.Context, cfg BatchConfig) (RapidBatch, error) {
	if err := cfg.validate(); err != nil {
		return RapidBatch{}, err
	}

	b.mu.Lock()
	if b.state == BatchRunning {
		b.mu.Unlock()
		return RapidBatch{}, ErrAlreadyRunning
	}
	b.state = BatchRunning
	b.stop.Store(false)
	batch := &RapidBatch{
		Config:    cfg,
		Total:     cfg.Count,
		StartTime: b.clock.Now(),
		State:     BatchRunning,
	}
	b.current = batch
	b.mu.Unlock()

	used := 0
	state, err := b.run(ctx, cfg, batch, &used)
	return b.finish(batch, state, err), err
}

func (b *BatchSender) run(ctx context.Context, cfg BatchConfig, batch *RapidBatch, used *int) (BatchState, error) {
	lease, err := b.alloc.Lease(ctx, b.account, cfg.Count)
	if err != nil {
		return BatchFailed, fmt.Errorf("reserving nonces: %w", err)
	}
	defer func() { lease.Release(*used) }()

	b.mu.Lock()
	batch.BaseNonce = lease.Base
	b.mu.Unlock()

	// One gas price for the whole batch keeps pricing consistent.
	gasPrice, err := b.gas.GasPrice(ctx)
	if err != nil {
		return BatchFailed, fmt.Errorf("%w: gas price: %w", ErrTransientQuery, err)
	}

	label := cfg.AmountLabel
	if label == "" {
		label = cfg.Amount.String()
	}

	b.log.Info("batch started",
		zap.String("recipient", cfg.Recipient),
		zap.Int("count", cfg.Count),
		zap.Uint64("base_nonce", lease.Base),
		zap.String("gas_price", gasPrice.String()),
	)

	for i := 0; i < cfg.Count; i++ {
		if b.stop.Load() {
			return BatchStopped, nil
		}
		if err := ctx.Err(); err != nil {
			return BatchStopped, err
		}

		nonce := lease.Nonce(i)
		hash, err := b.submit.Submit(ctx, TxRequest{
			To:       cfg.Recipient,
			Value:    cfg.Amount,
			GasPrice: gasPrice,
			GasLimit: BatchGasLimit,
			Nonce:    nonce,
		})
		if err != nil {
			return BatchFailed, fmt.Errorf("%w: tx %d/%d (nonce %d): %w", ErrSubmitFailed, i+1, cfg.Count, nonce, err)
		}
		*used = i + 1

		_, stale, err := b.registry.Record(QueuedTransaction{
			Hash:     hash,
			From:     b.account,
			Nonce:    nonce,
			To:       cfg.Recipient,
			Value:    cfg.Amount,
			GasPrice: gasPrice,
			GasLimit: BatchGasLimit,
			Kind:     KindTransfer,
			Description: fmt.Sprintf("Rapid transfer %d/%d: %s ETH to %s...",
				i+1, cfg.Count, label, shortHash(cfg.Recipient)),
		})
		if err != nil {
			return BatchFailed, fmt.Errorf("recording tx %d/%d: %w", i+1, cfg.Count, err)
		}
		if stale != "" {
			b.log.Warn("superseded queued transaction the node no longer holds",
				zap.String("stale", stale), zap.Uint64("nonce", nonce))
		}

		b.mu.Lock()
		batch.Completed++
		batch.Hashes = append(batch.Hashes, hash)
		snap := *batch
		snap.Hashes = append([]string(nil), batch.Hashes...)
		b.mu.Unlock()
		if b.progress != nil {
			b.progress(snap)
		}

		if cfg.Delay > 0 && i < cfg.Count-1 {
			select {
			case <-b.clock.After(cfg.Delay):
			case <-ctx.Done():
				return BatchStopped, ctx.Err()
			}
		}
	}
	return BatchCompleted, nil
}

func (b *BatchSender) finish(batch *RapidBatch, state BatchState, err error) RapidBatch {
	b.mu.Lock()
	defer b.mu.Unlock()
	batch.State = state
	batch.Err = err
	b.state = state
	b.finishedAt = b.clock.Now()

	fields := []zap.Field{
		zap.String("state", string(state)),
		zap.Int("completed", batch.Completed),
		zap.Int("total", batch.Total),
	}
	if err != nil {
		b.log.Warn("batch ended", append(fields, zap.Error(err))...)
	} else {
		b.log.Info("batch ended", fields...)
	}

	snap := *batch
	snap.Hashes = append([]string(nil), batch.Hashes...)
	return snap
}
