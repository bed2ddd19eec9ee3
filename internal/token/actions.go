package token

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Mohsinsiddi/w3tx/internal/chain"
	"github.com/Mohsinsiddi/w3tx/internal/config"
	"github.com/Mohsinsiddi/w3tx/internal/txqueue"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// GasEstimator estimates the gas of a call.
type GasEstimator interface {
	EstimateGas(ctx context.Context, msg chain.CallMsg) (uint64, error)
}

// Amount is a raw token amount with what is needed to print it.
type Amount struct {
	Raw      *big.Int
	Decimals uint8
	Symbol   string
}

func (a Amount) String() string {
	return chain.FormatUnits(a.Raw, int(a.Decimals)) + " " + a.Symbol
}

// Actions sends ERC-20 writes for one account. Every write goes through the
// Dispatcher and lands in the queue as a pending entry.
type Actions struct {
	dispatch *txqueue.Dispatcher
	estimate GasEstimator
	log      *zap.Logger
}

// ActionsOption configures Actions.
type ActionsOption func(*Actions)

// WithEstimator asks the node for gas limits instead of using the fixed
// fallbacks.
func WithEstimator(e GasEstimator) ActionsOption {
	return func(a *Actions) { a.estimate = e }
}

// WithActionsLogger sets the logger.
func WithActionsLogger(l *zap.Logger) ActionsOption {
	return func(a *Actions) { a.log = l }
}

// NewActions creates Actions on top of dispatch.
func NewActions(dispatch *txqueue.Dispatcher, opts ...ActionsOption) *Actions {
	a := &Actions{dispatch: dispatch, log: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Mint mints amount to the sending account.
func (a *Actions) Mint(ctx context.Context, token string, amount Amount) (txqueue.QueuedTransaction, error) {
	to := a.dispatch.Account()
	return a.send(ctx, token, "mint", txqueue.KindContract, config.GasLimitERC20Mint,
		fmt.Sprintf("Mint %s", amount), common.HexToAddress(to), amount.Raw)
}

// Transfer moves amount to recipient.
func (a *Actions) Transfer(ctx context.Context, token, recipient string, amount Amount) (txqueue.QueuedTransaction, error) {
	if err := checkAddress(recipient); err != nil {
		return txqueue.QueuedTransaction{}, err
	}
	return a.send(ctx, token, "transfer", txqueue.KindContract, config.GasLimitERC20Transfer,
		fmt.Sprintf("Transfer %s to %s", amount, chain.ShortAddr(recipient)), common.HexToAddress(recipient), amount.Raw)
}

// Approve lets spender move up to amount.
func (a *Actions) Approve(ctx context.Context, token, spender string, amount Amount) (txqueue.QueuedTransaction, error) {
	if err := checkAddress(spender); err != nil {
		return txqueue.QueuedTransaction{}, err
	}
	return a.send(ctx, token, "approve", txqueue.KindApprove, config.GasLimitERC20Transfer,
		fmt.Sprintf("Approve %s for %s", chain.ShortAddr(spender), amount), common.HexToAddress(spender), amount.Raw)
}

func (a *Actions) send(ctx context.Context, token, method string, kind txqueue.Kind, fallbackGas uint64, desc string, args ...any) (txqueue.QueuedTransaction, error) {
	if err := checkAddress(token); err != nil {
		return txqueue.QueuedTransaction{}, err
	}
	amt, ok := args[len(args)-1].(*big.Int)
	if !ok || amt == nil || amt.Sign() < 0 || (amt.Sign() == 0 && kind != txqueue.KindApprove) {
		// approve(spender, 0) revokes an allowance.
		return txqueue.QueuedTransaction{}, fmt.Errorf("%s: %w", method, chain.ErrInvalidAmount)
	}

	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return txqueue.QueuedTransaction{}, fmt.Errorf("encoding %s: %w", method, err)
	}

	gas := fallbackGas
	if a.estimate != nil {
		est, err := a.estimate.EstimateGas(ctx, chain.CallMsg{From: a.dispatch.Account(), To: token, Data: data})
		switch {
		case err == nil && est > 0:
			gas = est
		case chain.IsRevert(err):
			return txqueue.QueuedTransaction{}, fmt.Errorf("%s would revert: %w", method, err)
		default:
			a.log.Debug("gas estimate unavailable, using fallback",
				zap.String("method", method), zap.Uint64("gas", fallbackGas), zap.Error(err))
		}
	}

	return a.dispatch.Send(ctx, txqueue.Draft{
		To:          common.HexToAddress(token).Hex(),
		GasLimit:    gas,
		Data:        data,
		Kind:        kind,
		Description: desc,
	})
}
