package config_test

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Mohsinsiddi/w3tx/internal/config"
	"github.com/Mohsinsiddi/w3tx/internal/txqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tokenAddr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8545", cfg.RPCURL)
	assert.Equal(t, 5*time.Second, cfg.Monitor())
	assert.Equal(t, 10, cfg.SpeedUpPercent)
	assert.Equal(t, 3*time.Second, cfg.Grace())
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Empty(t, cfg.DefaultWallet)
	assert.NotNil(t, cfg.Tokens)
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(dir)
	require.NoError(t, err)

	cfg.RPCURL = "https://rpc.sepolia.org"
	cfg.DefaultWallet = "dev"
	cfg.SpeedUpPercent = 25
	require.NoError(t, cfg.AddToken("USDT", tokenAddr))
	require.NoError(t, cfg.Save())

	_, err = os.Stat(filepath.Join(dir, "config.json"))
	require.NoError(t, err)

	cfg2, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.sepolia.org", cfg2.RPCURL)
	assert.Equal(t, "dev", cfg2.DefaultWallet)
	assert.Equal(t, 25, cfg2.SpeedUpPercent)
	assert.Equal(t, tokenAddr, cfg2.Tokens["usdt"])
}

func TestHandEditedZeroValuesFallBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"rpc_url":"","monitor_interval":0}`), 0o600))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8545", cfg.RPCURL)
	assert.Equal(t, 5*time.Second, cfg.Monitor())
	assert.NotNil(t, cfg.Tokens)
}

func TestLoadRejectsBadJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{`), 0o600))
	_, err := config.Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestNonexistentDirIsCreated(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "w3tx")
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Dir())
	assert.Equal(t, filepath.Join(dir, "wallets.json"), cfg.WalletsPath())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestEnvOverrides(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	cfg.DefaultWallet = "file-wallet"

	t.Setenv(config.EnvRPCURL, "http://env-node:8545")
	t.Setenv(config.EnvWallet, "env-wallet")
	t.Setenv(config.EnvLogLevel, "debug")

	assert.Equal(t, "http://env-node:8545", cfg.RPC())
	assert.Equal(t, "env-wallet", cfg.Wallet())
	assert.Equal(t, "debug", cfg.Level())
	assert.Equal(t, "file-wallet", cfg.DefaultWallet, "file value is untouched")
}

func TestRPCEndpoints(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	cfg.RPCURL = "http://a"
	cfg.RPCFallbacks = []string{"http://b", " http://a ", "", "http://c"}

	assert.Equal(t, []string{"http://a", "http://b", "http://c"}, cfg.RPCEndpoints())

	t.Setenv(config.EnvRPCURL, "http://env")
	assert.Equal(t, []string{"http://env"}, cfg.RPCEndpoints(), "env pins one endpoint")
}

func TestLoadEnvFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("W3TX_TEST_FROM_DOTENV=yes\n"), 0o600))
	t.Setenv("W3TX_TEST_FROM_DOTENV", "")
	os.Unsetenv("W3TX_TEST_FROM_DOTENV")

	require.NoError(t, config.LoadEnvFiles(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "yes", os.Getenv("W3TX_TEST_FROM_DOTENV"))
}

// ---------------------------------------------------------------------------
// tokens
// ---------------------------------------------------------------------------

func TestTokenAliases(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, cfg.AddToken("Dai", tokenAddr))
	require.Error(t, cfg.AddToken("dai", tokenAddr), "duplicate alias")
	require.Error(t, cfg.AddToken("bad", "0x1234"))

	addr, err := cfg.ResolveToken("DAI")
	require.NoError(t, err)
	assert.Equal(t, tokenAddr, addr)

	addr, err = cfg.ResolveToken("0x5fbdb2315678afecb367f032d93f642f64180aa3")
	require.NoError(t, err)
	assert.Equal(t, tokenAddr, addr, "literal addresses are checksummed")

	require.NoError(t, cfg.RemoveToken("dai"))
	require.Error(t, cfg.RemoveToken("dai"))
	_, err = cfg.ResolveToken("dai")
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// queue.json
// ---------------------------------------------------------------------------

func TestQueueMissingFileIsEmpty(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	txs, err := cfg.LoadQueue()
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestQueueRoundTrip(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := []txqueue.QueuedTransaction{{
		ID:          "a",
		Hash:        "0xabc",
		From:        "0xfrom",
		Nonce:       7,
		To:          "0xto",
		Value:       big.NewInt(1_000_000_000_000_000),
		GasPrice:    big.NewInt(2_000_000_000),
		GasLimit:    21000,
		Data:        []byte{0x01, 0x02},
		Status:      txqueue.StatusPending,
		Kind:        txqueue.KindTransfer,
		Description: "Send 0.001 ETH",
		CreatedAt:   created,
		UpdatedAt:   created,
	}}
	require.NoError(t, cfg.SaveQueue(in))

	out, err := cfg.LoadQueue()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "0xabc", out[0].Hash)
	assert.Equal(t, 0, in[0].Value.Cmp(out[0].Value))
	assert.Equal(t, 0, in[0].GasPrice.Cmp(out[0].GasPrice))
	assert.Equal(t, []byte{0x01, 0x02}, out[0].Data)
	assert.True(t, created.Equal(out[0].CreatedAt))

	_, err = os.Stat(cfg.QueuePath() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")
}

func TestQueueRejectsFutureVersion(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cfg.QueuePath(), []byte(`{"version":99,"transactions":[]}`), 0o600))

	_, err = cfg.LoadQueue()
	require.Error(t, err)
}
