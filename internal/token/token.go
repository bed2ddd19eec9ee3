// Package token reads ERC-20 state and sends ERC-20 writes through the
// transaction queue.
package token

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/Mohsinsiddi/w3tx/internal/chain"
	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidAddress is returned for malformed token, owner or recipient
// addresses.
var ErrInvalidAddress = errors.New("invalid address")

// Caller executes read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg chain.CallMsg) ([]byte, error)
}

// Info is a token's metadata plus an owner's balance and self-allowance.
type Info struct {
	Address   string
	Name      string
	Symbol    string
	Decimals  uint8
	Balance   *big.Int
	Allowance *big.Int
}

// Format renders a raw amount with the token's decimals.
func (i Info) Format(raw *big.Int) string {
	return chain.FormatUnits(raw, int(i.Decimals))
}

// Parse converts a human amount ("1.5") to base units.
func (i Info) Parse(amount string) (*big.Int, error) {
	return chain.ParseUnits(amount, int(i.Decimals))
}

// Reader reads ERC-20 state.
type Reader struct {
	client Caller
}

// NewReader creates a Reader.
func NewReader(client Caller) *Reader {
	return &Reader{client: client}
}

// Info fetches metadata for token and, when owner is set, the owner's
// balance and allowance(owner, owner).
func (r *Reader) Info(ctx context.Context, token, owner string) (Info, error) {
	if err := checkAddress(token); err != nil {
		return Info{}, err
	}
	info := Info{
		Address:   common.HexToAddress(token).Hex(),
		Balance:   new(big.Int),
		Allowance: new(big.Int),
	}

	var err error
	if info.Name, err = r.callString(ctx, token, "name"); err != nil {
		return Info{}, err
	}
	if info.Symbol, err = r.callString(ctx, token, "symbol"); err != nil {
		return Info{}, err
	}
	if info.Decimals, err = r.Decimals(ctx, token); err != nil {
		return Info{}, err
	}
	if owner == "" {
		return info, nil
	}
	if info.Balance, err = r.BalanceOf(ctx, token, owner); err != nil {
		return Info{}, err
	}
	if info.Allowance, err = r.Allowance(ctx, token, owner, owner); err != nil {
		return Info{}, err
	}
	return info, nil
}

// Decimals returns the token's decimals.
func (r *Reader) Decimals(ctx context.Context, token string) (uint8, error) {
	out, err := r.call(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: unexpected type %T", out[0])
	}
	return d, nil
}

// BalanceOf returns owner's token balance in base units.
func (r *Reader) BalanceOf(ctx context.Context, token, owner string) (*big.Int, error) {
	if err := checkAddress(owner); err != nil {
		return nil, err
	}
	return r.callBig(ctx, token, "balanceOf", common.HexToAddress(owner))
}

// Allowance returns how much spender may move on behalf of owner.
func (r *Reader) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	if err := checkAddress(owner); err != nil {
		return nil, err
	}
	if err := checkAddress(spender); err != nil {
		return nil, err
	}
	return r.callBig(ctx, token, "allowance", common.HexToAddress(owner), common.HexToAddress(spender))
}

func (r *Reader) call(ctx context.Context, token, method string, args ...any) ([]any, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", method, err)
	}
	raw, err := r.client.CallContract(ctx, chain.CallMsg{To: token, Data: data})
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	out, err := erc20ABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("decoding %s: empty result", method)
	}
	return out, nil
}

func (r *Reader) callString(ctx context.Context, token, method string) (string, error) {
	out, err := r.call(ctx, token, method)
	if err != nil {
		return "", err
	}
	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("%s: unexpected type %T", method, out[0])
	}
	return s, nil
}

func (r *Reader) callBig(ctx context.Context, token, method string, args ...any) (*big.Int, error) {
	out, err := r.call(ctx, token, method, args...)
	if err != nil {
		return nil, err
	}
	n, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected type %T", method, out[0])
	}
	return n, nil
}

func checkAddress(addr string) error {
	if !common.IsHexAddress(addr) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return nil
}
