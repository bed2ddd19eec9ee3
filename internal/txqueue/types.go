package txqueue

import (
	"context"
	"math/big"
	"time"
)

// Status is the lifecycle state of a queued transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed || s == StatusCancelled
}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	return s == StatusPending || s.Terminal()
}

// Kind classifies a transaction for display. It has no behavioural effect.
type Kind string

const (
	KindTransfer Kind = "transfer"
	KindContract Kind = "contract"
	KindApprove  Kind = "approve"
)

// QueuedTransaction is one submitted transaction tracked by the Registry.
//
// Value, GasPrice and Data are treated as immutable once the entry has been
// added; the Registry hands out deep copies.
type QueuedTransaction struct {
	ID          string    `json:"id"`
	Hash        string    `json:"hash"`
	From        string    `json:"from"`
	Nonce       uint64    `json:"nonce"`
	To          string    `json:"to"`
	Value       *big.Int  `json:"value"`
	GasPrice    *big.Int  `json:"gas_price"`
	GasLimit    uint64    `json:"gas_limit"`
	Data        []byte    `json:"data,omitempty"`
	Status      Status    `json:"status"`
	Kind        Kind      `json:"kind"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ReplacedBy  string    `json:"replaced_by,omitempty"`
}

func (tx QueuedTransaction) clone() QueuedTransaction {
	out := tx
	if tx.Value != nil {
		out.Value = new(big.Int).Set(tx.Value)
	}
	if tx.GasPrice != nil {
		out.GasPrice = new(big.Int).Set(tx.GasPrice)
	}
	if tx.Data != nil {
		out.Data = append([]byte(nil), tx.Data...)
	}
	return out
}

// Stats is a per-status count of the Registry.
type Stats struct {
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Total     int `json:"total"`
}

// TxRequest is everything the Submitter needs to sign and broadcast one
// legacy-priced transaction.
type TxRequest struct {
	To       string
	Value    *big.Int
	GasPrice *big.Int
	GasLimit uint64
	Nonce    uint64
	Data     []byte
}

// Receipt is the subset of a mined transaction receipt the monitor needs.
type Receipt struct {
	Hash        string
	Success     bool
	BlockNumber uint64
}

// Submitter signs and broadcasts a transaction and returns its hash.
type Submitter interface {
	Submit(ctx context.Context, req TxRequest) (string, error)
}

// ReceiptSource looks up receipts. A nil receipt with a nil error means the
// transaction has not been mined yet.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, hash string) (*Receipt, error)
}

// GasOracle returns the current suggested gas price in wei.
type GasOracle interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}

// NonceSource returns the account's transaction count, used as the nonce
// baseline.
type NonceSource interface {
	TransactionCount(ctx context.Context, account string) (uint64, error)
}
