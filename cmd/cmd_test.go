package cmd

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Mohsinsiddi/w3tx/internal/config"
	"github.com/Mohsinsiddi/w3tx/internal/rpc"
	"github.com/Mohsinsiddi/w3tx/internal/txqueue"
	"github.com/Mohsinsiddi/w3tx/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hashA = "0x1111111111111111111111111111111111111111111111111111111111111111"
	hashB = "0x2222222222222222222222222222222222222222222222222222222222222222"
	from  = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	to    = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func seedQueue(t *testing.T, txs ...txqueue.QueuedTransaction) string {
	t.Helper()
	dir := t.TempDir()
	c, err := config.Load(dir)
	require.NoError(t, err)
	require.NoError(t, c.SaveQueue(txs))
	return dir
}

func queued(hash string, nonce uint64, status txqueue.Status) txqueue.QueuedTransaction {
	created := time.Date(2026, 1, 1, 12, 0, int(nonce), 0, time.UTC)
	return txqueue.QueuedTransaction{
		Hash:        hash,
		From:        from,
		Nonce:       nonce,
		To:          to,
		Value:       big.NewInt(1000),
		GasPrice:    big.NewInt(1_000_000_000),
		GasLimit:    21000,
		Status:      status,
		Kind:        txqueue.KindTransfer,
		Description: "test transfer",
		CreatedAt:   created,
	}
}

func run(t *testing.T, dir string, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(append([]string{"--config", dir}, args...))
	return rootCmd.Execute()
}

func savedQueue(t *testing.T, dir string) map[string]txqueue.QueuedTransaction {
	t.Helper()
	c, err := config.Load(dir)
	require.NoError(t, err)
	txs, err := c.LoadQueue()
	require.NoError(t, err)
	out := make(map[string]txqueue.QueuedTransaction, len(txs))
	for _, tx := range txs {
		out[tx.Hash] = tx
	}
	return out
}

// receiptServer answers eth_getTransactionReceipt from receipts; a nil entry
// means "not mined yet". eth_blockNumber always reports block 16.
func receiptServer(t *testing.T, receipts map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int64    `json:"id"`
			Method string   `json:"method"`
			Params []string `json:"params"`
		}
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch {
		case req.Method == "eth_getTransactionReceipt" && len(req.Params) == 1:
			resp["result"] = receipts[req.Params[0]]
		case req.Method == "eth_blockNumber":
			resp["result"] = "0x10"
		default:
			resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv
}

// ---------------------------------------------------------------------------
// queue commands
// ---------------------------------------------------------------------------

func TestQueueListAndStatsReadSavedQueue(t *testing.T) {
	dir := seedQueue(t, queued(hashA, 1, txqueue.StatusPending), queued(hashB, 2, txqueue.StatusConfirmed))
	require.NoError(t, run(t, dir, "queue", "list"))
	require.NoError(t, run(t, dir, "queue", "stats"))
	assert.Len(t, savedQueue(t, dir), 2)
}

func TestQueueListRejectsUnknownStatus(t *testing.T) {
	dir := seedQueue(t)
	err := run(t, dir, "queue", "list", "--status", "stuck")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
	queueStatus = ""
}

func TestQueueRemoveDropsEntry(t *testing.T) {
	dir := seedQueue(t, queued(hashA, 1, txqueue.StatusPending), queued(hashB, 2, txqueue.StatusConfirmed))
	require.NoError(t, run(t, dir, "queue", "remove", "--yes", hashA))

	saved := savedQueue(t, dir)
	assert.NotContains(t, saved, hashA)
	assert.Contains(t, saved, hashB)
}

func TestQueueRemoveUnknownHash(t *testing.T) {
	dir := seedQueue(t, queued(hashA, 1, txqueue.StatusPending))
	err := run(t, dir, "queue", "remove", "--yes", hashB)
	require.ErrorIs(t, err, txqueue.ErrNotFound)
	assert.Len(t, savedQueue(t, dir), 1)
}

func TestQueueRefreshAppliesReceipts(t *testing.T) {
	const hashC = "0x3333333333333333333333333333333333333333333333333333333333333333"
	dir := seedQueue(t,
		queued(hashA, 1, txqueue.StatusPending),
		queued(hashB, 2, txqueue.StatusPending),
		queued(hashC, 3, txqueue.StatusPending),
	)
	srv := receiptServer(t, map[string]any{
		hashA: map[string]any{"status": "0x1", "blockNumber": "0x10"},
		hashB: map[string]any{"status": "0x0", "blockNumber": "0x10"},
		hashC: nil,
	})
	t.Setenv(config.EnvRPCURL, srv.URL)

	require.NoError(t, run(t, dir, "queue", "refresh"))

	saved := savedQueue(t, dir)
	assert.Equal(t, txqueue.StatusConfirmed, saved[hashA].Status)
	assert.Equal(t, txqueue.StatusFailed, saved[hashB].Status)
	assert.Equal(t, txqueue.StatusPending, saved[hashC].Status)
}

func TestSpeedUpNeedsWallet(t *testing.T) {
	dir := seedQueue(t, queued(hashA, 1, txqueue.StatusPending))
	c, err := config.Load(dir)
	require.NoError(t, err)
	c.ChainID = 31337
	require.NoError(t, c.Save())

	err = run(t, dir, "queue", "speedup", hashA)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no wallet selected")
	assert.Equal(t, txqueue.StatusPending, savedQueue(t, dir)[hashA].Status)
}

func TestSpeedUpRejectsWatchOnlyWallet(t *testing.T) {
	dir := seedQueue(t, queued(hashA, 1, txqueue.StatusPending))
	c, err := config.Load(dir)
	require.NoError(t, err)
	c.ChainID = 31337
	require.NoError(t, c.Save())

	mgr := wallet.NewManager(wallet.WithStore(wallet.NewJSONStore(c.WalletsPath())))
	require.NoError(t, mgr.Add("watcher", &wallet.Wallet{Address: from, Type: wallet.TypeWatchOnly}))

	err = run(t, dir, "--wallet", "watcher", "queue", "speedup", hashA)
	require.ErrorIs(t, err, wallet.ErrWatchOnly)
	walletFlag = ""
}

// ---------------------------------------------------------------------------
// token aliases
// ---------------------------------------------------------------------------

func TestTokenAliasLifecycle(t *testing.T) {
	dir := t.TempDir()
	const addr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

	require.NoError(t, run(t, dir, "token", "add", "TT", addr))
	c, err := config.Load(dir)
	require.NoError(t, err)
	resolved, err := c.ResolveToken("tt")
	require.NoError(t, err)
	assert.Equal(t, addr, resolved)

	require.Error(t, run(t, dir, "token", "add", "tt", addr), "duplicate alias")

	require.NoError(t, run(t, dir, "token", "remove", "tt"))
	c, err = config.Load(dir)
	require.NoError(t, err)
	_, err = c.ResolveToken("tt")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func TestWalletTypeLabel(t *testing.T) {
	assert.Equal(t, "read-write", walletTypeLabel(wallet.TypeSigning))
	assert.Equal(t, "watch-only", walletTypeLabel(wallet.TypeWatchOnly))
}

func TestErrLineHints(t *testing.T) {
	cfg = &config.Config{RPCURL: "http://node"}
	assert.Contains(t, errLine(txqueue.ErrNotFound), "w3tx queue list")
	assert.Contains(t, errLine(errors.Join(errors.New("x"), txqueue.ErrTransientQuery)), "http://node")
	assert.Contains(t, errLine(wallet.ErrWatchOnly), "wallet use")
	assert.Contains(t, errLine(txqueue.ErrForeignAccount), "--wallet")
	assert.NotContains(t, errLine(errors.New("plain")), "💡")
}

// ---------------------------------------------------------------------------
// rpc endpoints
// ---------------------------------------------------------------------------

func TestRPCCommandReportsAllDown(t *testing.T) {
	dir := t.TempDir()
	c, err := config.Load(dir)
	require.NoError(t, err)
	c.RPCURL = "http://127.0.0.1:1"
	c.RPCFallbacks = []string{"http://127.0.0.1:2"}
	require.NoError(t, c.Save())

	err = run(t, dir, "rpc")
	require.ErrorIs(t, err, rpc.ErrNoHealthyRPC)
}

func TestQueueRefreshFailsOverToFallback(t *testing.T) {
	dir := seedQueue(t, queued(hashA, 1, txqueue.StatusPending))
	srv := receiptServer(t, map[string]any{
		hashA: map[string]any{"status": "0x1", "blockNumber": "0x10"},
	})
	c, err := config.Load(dir)
	require.NoError(t, err)
	c.RPCURL = "http://127.0.0.1:1"
	c.RPCFallbacks = []string{srv.URL}
	require.NoError(t, c.Save())

	require.NoError(t, run(t, dir, "queue", "refresh"))
	assert.Equal(t, txqueue.StatusConfirmed, savedQueue(t, dir)[hashA].Status)
}
