package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Mohsinsiddi/w3tx/internal/txqueue"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DefaultTimeout bounds a single JSON-RPC round trip.
const DefaultTimeout = 15 * time.Second

// ErrUnexpectedResult is returned when the node answers with a result of the
// wrong shape.
var ErrUnexpectedResult = errors.New("unexpected RPC result")

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Client is a minimal JSON-RPC client for one EVM chain. It implements the
// chain-query collaborators of the transaction queue.
type Client struct {
	url    string
	client *http.Client
	nextID atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// NewClient creates a client pointed at url.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:    url,
		client: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the endpoint the client talks to.
func (c *Client) URL() string { return c.url }

var (
	_ txqueue.GasOracle     = (*Client)(nil)
	_ txqueue.NonceSource   = (*Client)(nil)
	_ txqueue.ReceiptSource = (*Client)(nil)
)

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.callUint64(ctx, "eth_blockNumber")
}

// ChainID returns the chain's ID.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "eth_chainId")
}

// GasPrice returns the node's current legacy gas price in wei.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "eth_gasPrice")
}

// Balance returns the native balance of address in wei.
func (c *Client) Balance(ctx context.Context, address string) (*big.Int, error) {
	return c.callBig(ctx, "eth_getBalance", address, "latest")
}

// TransactionCount returns the account's transaction count including
// transactions still in the node's pool ("pending" block tag).
func (c *Client) TransactionCount(ctx context.Context, account string) (uint64, error) {
	return c.callUint64(ctx, "eth_getTransactionCount", account, "pending")
}

// CallMsg is the subset of an eth_call / eth_estimateGas request we send.
type CallMsg struct {
	From  string
	To    string
	Data  []byte
	Value *big.Int
}

func (m CallMsg) params() map[string]string {
	p := map[string]string{"to": m.To}
	if m.From != "" {
		p["from"] = m.From
	}
	if len(m.Data) > 0 {
		p["data"] = hexutil.Encode(m.Data)
	}
	if m.Value != nil && m.Value.Sign() > 0 {
		p["value"] = hexutil.EncodeBig(m.Value)
	}
	return p
}

// EstimateGas asks the node for the gas a call would use.
func (c *Client) EstimateGas(ctx context.Context, msg CallMsg) (uint64, error) {
	return c.callUint64(ctx, "eth_estimateGas", msg.params())
}

// CallContract executes a read-only call against the latest block and
// returns the raw return data.
func (c *Client) CallContract(ctx context.Context, msg CallMsg) ([]byte, error) {
	var out string
	if err := c.call(ctx, &out, "eth_call", msg.params(), "latest"); err != nil {
		return nil, err
	}
	data, err := hexutil.Decode(out)
	if err != nil {
		if out == "0x" {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: call result %q: %v", ErrUnexpectedResult, out, err)
	}
	return data, nil
}

// SendRawTransaction broadcasts a signed, RLP-encoded transaction and
// returns its hash.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (string, error) {
	var hash string
	if err := c.call(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(raw)); err != nil {
		return "", err
	}
	return hash, nil
}

type rawReceipt struct {
	Status      string `json:"status"`
	BlockNumber string `json:"blockNumber"`
	GasUsed     string `json:"gasUsed"`
}

// TransactionReceipt fetches the receipt for hash. It returns nil, nil while
// the transaction is not yet mined.
func (c *Client) TransactionReceipt(ctx context.Context, hash string) (*txqueue.Receipt, error) {
	var r *rawReceipt
	if err := c.call(ctx, &r, "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}

	receipt := &txqueue.Receipt{Hash: hash}
	status, err := hexutil.DecodeUint64(r.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: receipt status %q", ErrUnexpectedResult, r.Status)
	}
	receipt.Success = status == 1
	if bn, err := hexutil.DecodeUint64(r.BlockNumber); err == nil {
		receipt.BlockNumber = bn
	}
	return receipt, nil
}

// LogFilter selects logs for GetLogs. Zero block numbers mean "latest".
type LogFilter struct {
	Address   string
	Topics    [][]common.Hash
	FromBlock uint64
	ToBlock   uint64
}

// LogEntry holds one event log.
type LogEntry struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber string   `json:"blockNumber"`
	TxHash      string   `json:"transactionHash"`
	LogIndex    string   `json:"logIndex"`
}

// Block returns the log's block number.
func (l LogEntry) Block() uint64 {
	n, _ := hexutil.DecodeUint64(l.BlockNumber)
	return n
}

// Index returns the log's index within its block.
func (l LogEntry) Index() uint64 {
	n, _ := hexutil.DecodeUint64(l.LogIndex)
	return n
}

// GetLogs queries event logs matching filter.
func (c *Client) GetLogs(ctx context.Context, filter LogFilter) ([]LogEntry, error) {
	f := map[string]any{
		"address":   filter.Address,
		"fromBlock": blockTag(filter.FromBlock),
		"toBlock":   blockTag(filter.ToBlock),
	}
	if len(filter.Topics) > 0 {
		topics := make([]any, len(filter.Topics))
		for i, alts := range filter.Topics {
			switch len(alts) {
			case 0:
				topics[i] = nil
			case 1:
				topics[i] = alts[0].Hex()
			default:
				hexes := make([]string, len(alts))
				for j, h := range alts {
					hexes[j] = h.Hex()
				}
				topics[i] = hexes
			}
		}
		f["topics"] = topics
	}

	var logs []LogEntry
	if err := c.call(ctx, &logs, "eth_getLogs", f); err != nil {
		return nil, err
	}
	return logs, nil
}

func blockTag(n uint64) string {
	if n == 0 {
		return "latest"
	}
	return hexutil.EncodeUint64(n)
}

// --- internal JSON-RPC plumbing ---

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int64  `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

func (c *Client) call(ctx context.Context, out any, method string, params ...any) error {
	if params == nil {
		params = []any{}
	}
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("RPC request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("RPC request failed: HTTP %d", resp.StatusCode)
		}
		return fmt.Errorf("parsing response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnexpectedResult, method, err)
	}
	return nil
}

func (c *Client) callBig(ctx context.Context, method string, params ...any) (*big.Int, error) {
	var s string
	if err := c.call(ctx, &s, method, params...); err != nil {
		return nil, err
	}
	n, err := hexutil.DecodeBig(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s returned %q", ErrUnexpectedResult, method, s)
	}
	return n, nil
}

func (c *Client) callUint64(ctx context.Context, method string, params ...any) (uint64, error) {
	var s string
	if err := c.call(ctx, &s, method, params...); err != nil {
		return 0, err
	}
	n, err := hexutil.DecodeUint64(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s returned %q", ErrUnexpectedResult, method, s)
	}
	return n, nil
}

// IsRevert reports whether err is a node error caused by an execution
// revert rather than a transport problem.
func IsRevert(err error) bool {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	msg := strings.ToLower(rpcErr.Message)
	return strings.Contains(msg, "revert") || strings.Contains(msg, "execution")
}
