package e2e_test

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Mohsinsiddi/w3tx/internal/config"
	"github.com/Mohsinsiddi/w3tx/internal/txqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var binaryPath string

func TestMain(m *testing.M) {
	// Build the binary before all E2E tests.
	tmp, err := os.MkdirTemp("", "w3tx-e2e-test")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmp)

	binaryPath = filepath.Join(tmp, "w3tx")
	// Build from the module root (two levels up from test/e2e/).
	moduleRoot, err := filepath.Abs(filepath.Join("..", ".."))
	if err != nil {
		panic(err)
	}
	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	cmd.Dir = moduleRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		panic("build failed: " + string(out))
	}

	os.Exit(m.Run())
}

func runCLI(t *testing.T, configDir string, env []string, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), config.EnvConfigDir+"="+configDir)
	cmd.Env = append(cmd.Env, env...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// fakeNode answers eth_blockNumber, eth_chainId and eth_getTransactionReceipt; every
// transaction in mined is reported confirmed.
func fakeNode(t *testing.T, mined ...string) *httptest.Server {
	t.Helper()
	confirmed := make(map[string]bool)
	for _, h := range mined {
		confirmed[h] = true
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int64    `json:"id"`
			Method string   `json:"method"`
			Params []string `json:"params"`
		}
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": nil}
		switch req.Method {
		case "eth_blockNumber":
			resp["result"] = "0x20"
		case "eth_chainId":
			resp["result"] = "0x7a69"
		case "eth_getTransactionReceipt":
			if len(req.Params) == 1 && confirmed[req.Params[0]] {
				resp["result"] = map[string]any{"status": "0x1", "blockNumber": "0x20"}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVersionFlag(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), nil, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "w3tx")
}

func TestHelpCommand(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), nil, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"queue", "send", "batch", "token", "events", "sign", "wallet", "rpc"} {
		assert.Contains(t, out, sub, "help should list %s", sub)
	}
}

func TestQueueListEmpty(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), nil, "queue", "list")
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(out), "empty")
}

func TestQueueRefreshAgainstNode(t *testing.T) {
	const hash = "0xabababababababababababababababababababababababababababababababab"
	dir := t.TempDir()
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	require.NoError(t, cfg.SaveQueue([]txqueue.QueuedTransaction{{
		Hash:      hash,
		From:      "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		Nonce:     0,
		To:        "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		Value:     big.NewInt(1),
		GasPrice:  big.NewInt(1_000_000_000),
		GasLimit:  21000,
		Status:    txqueue.StatusPending,
		Kind:      txqueue.KindTransfer,
		CreatedAt: time.Now().UTC(),
	}}))
	node := fakeNode(t, hash)

	_, err = runCLI(t, dir, []string{config.EnvRPCURL + "=" + node.URL}, "queue", "refresh")
	require.NoError(t, err)

	txs, err := cfg.LoadQueue()
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, txqueue.StatusConfirmed, txs[0].Status)
}

func TestWalletAddAndList(t *testing.T) {
	dir := t.TempDir()

	_, err := runCLI(t, dir, nil, "wallet", "add", "watcher", "0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	require.NoError(t, err)

	out, err := runCLI(t, dir, nil, "wallet", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "watcher")
	assert.Contains(t, out, "watch-only")
}

func TestWalletRemove(t *testing.T) {
	dir := t.TempDir()
	runCLI(t, dir, nil, "wallet", "add", "w1", "0x70997970C51812dc3A010C7d01b50e0d17dc79C8") //nolint:errcheck

	// Use stdin to auto-confirm the prompt.
	cmd := exec.Command(binaryPath, "wallet", "remove", "w1")
	cmd.Env = append(os.Environ(), config.EnvConfigDir+"="+dir)
	cmd.Stdin = strings.NewReader("y\n")
	cmd.Run() //nolint:errcheck

	out, err := runCLI(t, dir, nil, "wallet", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "w1")
}

func TestSendWithoutWalletFails(t *testing.T) {
	node := fakeNode(t)
	out, err := runCLI(t, t.TempDir(), []string{config.EnvRPCURL + "=" + node.URL},
		"send", "--to", "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", "--value", "0.1", "-y")
	require.Error(t, err)
	assert.Contains(t, out, "no wallet selected")
}

func TestTokenAliases(t *testing.T) {
	dir := t.TempDir()
	_, err := runCLI(t, dir, nil, "token", "add", "tt", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	require.NoError(t, err)

	out, err := runCLI(t, dir, nil, "token", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "tt")
	assert.Contains(t, out, "0x5FbDB2315678afecb367f032d93F642f64180aa3")
}

func TestRPCProbe(t *testing.T) {
	node := fakeNode(t)
	out, err := runCLI(t, t.TempDir(), []string{config.EnvRPCURL + "=" + node.URL}, "rpc")
	require.NoError(t, err)
	assert.Contains(t, out, "32")
	assert.Contains(t, out, "failover")
}
