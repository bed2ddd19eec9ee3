package txqueue

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CancelGasLimit is the gas limit of the zero-value self-transfer used to
// cancel a transaction.
const CancelGasLimit = uint64(21_000)

// DefaultSpeedUpPercent is the gas increase used when none is given.
const DefaultSpeedUpPercent = 10

// Replacer implements speed-up and cancel. Both re-send at the nonce of an
// existing pending entry and supersede it in the Registry.
type Replacer struct {
	registry *Registry
	submit   Submitter
	gas      GasOracle
	account  string
	log      *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{} // account/nonce keys being replaced
}

// ReplacerOption configures a Replacer.
type ReplacerOption func(*Replacer)

// WithReplacerLogger sets the logger.
func WithReplacerLogger(l *zap.Logger) ReplacerOption {
	return func(r *Replacer) { r.log = l }
}

// NewReplacer creates a Replacer signing as account.
func NewReplacer(registry *Registry, submit Submitter, gas GasOracle, account string, opts ...ReplacerOption) *Replacer {
	r := &Replacer{
		registry: registry,
		submit:   submit,
		gas:      gas,
		account:  account,
		log:      zap.NewNop(),
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BumpGasPrice returns price * (100 + percent) / 100 using integer floor
// division.
func BumpGasPrice(price *big.Int, percent int) *big.Int {
	out := new(big.Int).Mul(price, big.NewInt(int64(100+percent)))
	return out.Div(out, big.NewInt(100))
}

// SpeedUp re-sends the transaction with the network gas price raised by
// percent and returns the new entry.
func (r *Replacer) SpeedUp(ctx context.Context, hash string, percent int) (QueuedTransaction, error) {
	if percent < 0 {
		return QueuedTransaction{}, fmt.Errorf("%w: %d", ErrInvalidBump, percent)
	}
	current, done, err := r.begin(hash)
	if err != nil {
		return QueuedTransaction{}, err
	}
	defer done()

	gasPrice, err := r.gas.GasPrice(ctx)
	if err != nil {
		return QueuedTransaction{}, fmt.Errorf("%w: gas price: %w", ErrTransientQuery, err)
	}
	newGasPrice := BumpGasPrice(gasPrice, percent)
	if current.GasPrice != nil && newGasPrice.Cmp(current.GasPrice) <= 0 {
		r.log.Warn("replacement gas price does not exceed original, node may reject it",
			zap.String("hash", hash),
			zap.String("old_gas_price", current.GasPrice.String()),
			zap.String("gas_price", newGasPrice.String()),
		)
	}

	newHash, err := r.submit.Submit(ctx, TxRequest{
		To:       current.To,
		Value:    current.Value,
		GasPrice: newGasPrice,
		GasLimit: current.GasLimit,
		Nonce:    current.Nonce,
		Data:     current.Data,
	})
	if err != nil {
		return QueuedTransaction{}, fmt.Errorf("%w: speed up %s: %w", ErrSubmitFailed, hash, err)
	}

	next := current
	next.ID = ""
	next.Hash = newHash
	next.GasPrice = newGasPrice
	next.CreatedAt = time.Time{}
	next.UpdatedAt = time.Time{}
	next.ReplacedBy = ""
	added, err := r.registry.Replace(hash, next)
	if err != nil {
		return QueuedTransaction{}, fmt.Errorf("recording speed up of %s: %w", hash, err)
	}
	r.log.Info("transaction sped up",
		zap.String("hash", hash),
		zap.String("replacement", newHash),
		zap.Uint64("nonce", current.Nonce),
		zap.String("gas_price", newGasPrice.String()),
	)
	return added, nil
}

// Cancel replaces the transaction with a zero-value transfer to the
// account itself at the current network gas price.
func (r *Replacer) Cancel(ctx context.Context, hash string) (QueuedTransaction, error) {
	current, done, err := r.begin(hash)
	if err != nil {
		return QueuedTransaction{}, err
	}
	defer done()

	gasPrice, err := r.gas.GasPrice(ctx)
	if err != nil {
		return QueuedTransaction{}, fmt.Errorf("%w: gas price: %w", ErrTransientQuery, err)
	}

	cancelHash, err := r.submit.Submit(ctx, TxRequest{
		To:       r.account,
		Value:    new(big.Int),
		GasPrice: gasPrice,
		GasLimit: CancelGasLimit,
		Nonce:    current.Nonce,
	})
	if err != nil {
		return QueuedTransaction{}, fmt.Errorf("%w: cancel %s: %w", ErrSubmitFailed, hash, err)
	}

	added, err := r.registry.Replace(hash, QueuedTransaction{
		Hash:        cancelHash,
		From:        current.From,
		Nonce:       current.Nonce,
		To:          r.account,
		Value:       new(big.Int),
		GasPrice:    gasPrice,
		GasLimit:    CancelGasLimit,
		Kind:        KindTransfer,
		Description: fmt.Sprintf("Cancel transaction %s...", shortHash(hash)),
	})
	if err != nil {
		return QueuedTransaction{}, fmt.Errorf("recording cancel of %s: %w", hash, err)
	}
	r.log.Info("transaction cancelled",
		zap.String("hash", hash),
		zap.String("replacement", cancelHash),
		zap.Uint64("nonce", current.Nonce),
	)
	return added, nil
}

// begin looks the entry up and marks its nonce as being replaced. The
// returned func clears the mark.
func (r *Replacer) begin(hash string) (QueuedTransaction, func(), error) {
	current, err := r.replaceable(hash)
	if err != nil {
		return QueuedTransaction{}, nil, err
	}

	key := fmt.Sprintf("%s/%d", strings.ToLower(current.From), current.Nonce)
	r.mu.Lock()
	if _, busy := r.inFlight[key]; busy {
		r.mu.Unlock()
		return QueuedTransaction{}, nil, fmt.Errorf("%w: nonce %d", ErrReplacementInProgress, current.Nonce)
	}
	r.inFlight[key] = struct{}{}
	r.mu.Unlock()

	done := func() {
		r.mu.Lock()
		delete(r.inFlight, key)
		r.mu.Unlock()
	}

	// A replacement that finished before the mark was taken may already
	// have settled the entry.
	current, err = r.replaceable(hash)
	if err != nil {
		done()
		return QueuedTransaction{}, nil, err
	}
	return current, done, nil
}

// replaceable returns the entry for hash if this account may replace it.
func (r *Replacer) replaceable(hash string) (QueuedTransaction, error) {
	current, ok := r.registry.Get(hash)
	if !ok {
		return QueuedTransaction{}, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	if !strings.EqualFold(current.From, r.account) {
		return QueuedTransaction{}, fmt.Errorf("%w: %s is from %s", ErrForeignAccount, hash, current.From)
	}
	if current.Status != StatusPending {
		return QueuedTransaction{}, fmt.Errorf("%w: %s is %s", ErrNotPending, hash, current.Status)
	}
	return current, nil
}

func shortHash(h string) string {
	if len(h) <= 10 {
		return h
	}
	return h[:10]
}
