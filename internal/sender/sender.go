package sender

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/Mohsinsiddi/w3tx/internal/txqueue"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// TxSigner signs transactions for one account.
type TxSigner interface {
	Address() string
	SignTx(tx *types.Transaction, chainID *big.Int) ([]byte, error)
}

// Broadcaster sends a signed transaction to the network.
type Broadcaster interface {
	SendRawTransaction(ctx context.Context, raw []byte) (string, error)
}

// Transactor signs queue requests as legacy transactions and broadcasts
// them. It is the Submitter used by the queue in production.
type Transactor struct {
	signer  TxSigner
	client  Broadcaster
	chainID *big.Int
	log     *zap.Logger
}

var _ txqueue.Submitter = (*Transactor)(nil)

// Option configures a Transactor.
type Option func(*Transactor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Transactor) { t.log = l }
}

// New creates a Transactor for chainID.
func New(signer TxSigner, client Broadcaster, chainID *big.Int, opts ...Option) *Transactor {
	t := &Transactor{
		signer:  signer,
		client:  client,
		chainID: new(big.Int).Set(chainID),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Account returns the signing address.
func (t *Transactor) Account() string { return t.signer.Address() }

// Submit signs req and broadcasts it, returning the transaction hash.
func (t *Transactor) Submit(ctx context.Context, req txqueue.TxRequest) (string, error) {
	if !common.IsHexAddress(req.To) {
		return "", fmt.Errorf("invalid recipient %q", req.To)
	}
	if req.GasPrice == nil {
		return "", fmt.Errorf("gas price is required")
	}
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := common.HexToAddress(req.To)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    req.Nonce,
		GasPrice: req.GasPrice,
		Gas:      req.GasLimit,
		To:       &to,
		Value:    value,
		Data:     req.Data,
	})

	raw, err := t.signer.SignTx(tx, t.chainID)
	if err != nil {
		return "", err
	}
	var signed types.Transaction
	if err := signed.UnmarshalBinary(raw); err != nil {
		return "", fmt.Errorf("decoding signed tx: %w", err)
	}
	local := signed.Hash().Hex()

	hash, err := t.client.SendRawTransaction(ctx, raw)
	if err != nil {
		// A re-broadcast of an identical transaction is not a failure.
		if strings.Contains(strings.ToLower(err.Error()), "already known") {
			t.log.Debug("transaction already known", zap.String("hash", local))
			return local, nil
		}
		return "", fmt.Errorf("broadcasting transaction: %w", err)
	}
	if hash == "" {
		hash = local
	}
	t.log.Debug("transaction broadcast",
		zap.String("hash", hash),
		zap.Uint64("nonce", req.Nonce),
		zap.String("to", req.To),
		zap.String("gas_price", req.GasPrice.String()),
	)
	return hash, nil
}
