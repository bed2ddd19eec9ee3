package wallet

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Permit domain constants.
const (
	PermitDomainName    = "ERC20Permit"
	PermitDomainVersion = "1"
	DefaultPermitTTL    = time.Hour
)

// ErrSignerMismatch is returned when a typed-data signature recovers to an
// address other than the expected one.
var ErrSignerMismatch = errors.New("signature does not match signer")

// Permit is the message of a Permit typed-data signature.
type Permit struct {
	Token    string
	ChainID  *big.Int
	From     string
	To       string
	Amount   *big.Int
	Nonce    uint64
	Deadline int64 // unix seconds
}

// NewPermit fills in the default deadline of now + DefaultPermitTTL when
// deadline is zero.
func NewPermit(token string, chainID *big.Int, from, to string, amount *big.Int, nonce uint64, deadline int64, now time.Time) (Permit, error) {
	for label, addr := range map[string]string{"token": token, "from": from, "to": to} {
		if !common.IsHexAddress(addr) {
			return Permit{}, fmt.Errorf("invalid %s address %q", label, addr)
		}
	}
	if amount == nil || amount.Sign() < 0 {
		return Permit{}, fmt.Errorf("amount must be zero or positive")
	}
	if deadline == 0 {
		deadline = now.Add(DefaultPermitTTL).Unix()
	}
	return Permit{
		Token:    token,
		ChainID:  new(big.Int).Set(chainID),
		From:     from,
		To:       to,
		Amount:   new(big.Int).Set(amount),
		Nonce:    nonce,
		Deadline: deadline,
	}, nil
}

// TypedData returns the EIP-712 representation of p.
func (p Permit) TypedData() apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Permit": {
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "amount", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "deadline", Type: "uint256"},
			},
		},
		PrimaryType: "Permit",
		Domain: apitypes.TypedDataDomain{
			Name:              PermitDomainName,
			Version:           PermitDomainVersion,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(p.ChainID)),
			VerifyingContract: common.HexToAddress(p.Token).Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"from":     common.HexToAddress(p.From).Hex(),
			"to":       common.HexToAddress(p.To).Hex(),
			"amount":   p.Amount.String(),
			"nonce":    fmt.Sprintf("%d", p.Nonce),
			"deadline": fmt.Sprintf("%d", p.Deadline),
		},
	}
}

// Hash returns the EIP-712 digest that gets signed.
func (p Permit) Hash() ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(p.TypedData())
	if err != nil {
		return nil, fmt.Errorf("hashing typed data: %w", err)
	}
	return hash, nil
}

// SignPermit signs p with the wallet key.
func SignPermit(s *Signer, p Permit) ([]byte, error) {
	if !strings.EqualFold(s.Address(), p.From) {
		return nil, fmt.Errorf("permit from %s but wallet is %s", p.From, s.Address())
	}
	hash, err := p.Hash()
	if err != nil {
		return nil, err
	}
	return s.SignHash(hash)
}

// RecoverPermit returns the address that signed p.
func RecoverPermit(p Permit, sig []byte) (common.Address, error) {
	hash, err := p.Hash()
	if err != nil {
		return common.Address{}, err
	}
	return recoverAddress(hash, sig)
}

// VerifyPermit checks that sig over p was produced by p.From.
func VerifyPermit(p Permit, sig []byte) (common.Address, error) {
	addr, err := RecoverPermit(p, sig)
	if err != nil {
		return common.Address{}, err
	}
	if !strings.EqualFold(addr.Hex(), p.From) {
		return addr, fmt.Errorf("%w: recovered %s, expected %s", ErrSignerMismatch, addr.Hex(), p.From)
	}
	return addr, nil
}
