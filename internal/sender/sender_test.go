package sender

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/Mohsinsiddi/w3tx/internal/txqueue"
	"github.com/Mohsinsiddi/w3tx/internal/wallet"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPrivKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAccount    = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testRecipient  = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

type fakeBroadcaster struct {
	raw  [][]byte
	hash string
	err  error
}

func (b *fakeBroadcaster) SendRawTransaction(_ context.Context, raw []byte) (string, error) {
	b.raw = append(b.raw, raw)
	return b.hash, b.err
}

func testSigner(t *testing.T) *wallet.Signer {
	t.Helper()
	mgr := wallet.NewManager(wallet.WithInMemoryStore())
	require.NoError(t, mgr.AddWithKey("test", testPrivKeyHex))
	s, err := mgr.Signer("test")
	require.NoError(t, err)
	return s
}

func decode(t *testing.T, raw []byte) *types.Transaction {
	t.Helper()
	var tx types.Transaction
	require.NoError(t, tx.UnmarshalBinary(raw))
	return &tx
}

func TestSubmitSignsLegacyTx(t *testing.T) {
	b := &fakeBroadcaster{}
	tr := New(testSigner(t), b, big.NewInt(31337))
	assert.Equal(t, testAccount, tr.Account())

	hash, err := tr.Submit(context.Background(), txqueue.TxRequest{
		To:       testRecipient,
		Value:    big.NewInt(1000),
		GasPrice: big.NewInt(2_000_000_000),
		GasLimit: 21000,
		Nonce:    9,
		Data:     []byte{0xde, 0xad},
	})
	require.NoError(t, err)
	require.Len(t, b.raw, 1)

	tx := decode(t, b.raw[0])
	assert.Equal(t, uint8(types.LegacyTxType), tx.Type())
	assert.Equal(t, uint64(9), tx.Nonce())
	assert.Equal(t, int64(2_000_000_000), tx.GasPrice().Int64())
	assert.Equal(t, uint64(21000), tx.Gas())
	assert.Equal(t, int64(1000), tx.Value().Int64())
	assert.Equal(t, []byte{0xde, 0xad}, tx.Data())
	assert.Equal(t, testRecipient, tx.To().Hex())

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(31337)), tx)
	require.NoError(t, err)
	assert.Equal(t, testAccount, from.Hex())

	// Node returned no hash, so the locally computed one is used.
	assert.Equal(t, tx.Hash().Hex(), hash)
}

func TestSubmitReturnsNodeHash(t *testing.T) {
	b := &fakeBroadcaster{hash: "0xabc"}
	hash, err := New(testSigner(t), b, big.NewInt(1)).Submit(context.Background(), txqueue.TxRequest{
		To: testRecipient, GasPrice: big.NewInt(1), GasLimit: 21000,
	})
	require.NoError(t, err)
	assert.Equal(t, "0xabc", hash)
	assert.Equal(t, int64(0), decode(t, b.raw[0]).Value().Int64(), "nil value means zero")
}

func TestSubmitAlreadyKnown(t *testing.T) {
	b := &fakeBroadcaster{err: errors.New("RPC error -32000: already known")}
	hash, err := New(testSigner(t), b, big.NewInt(1)).Submit(context.Background(), txqueue.TxRequest{
		To: testRecipient, GasPrice: big.NewInt(1), GasLimit: 21000,
	})
	require.NoError(t, err)
	assert.Equal(t, decode(t, b.raw[0]).Hash().Hex(), hash)
}

func TestSubmitBroadcastError(t *testing.T) {
	cause := errors.New("nonce too low")
	b := &fakeBroadcaster{err: cause}
	_, err := New(testSigner(t), b, big.NewInt(1)).Submit(context.Background(), txqueue.TxRequest{
		To: testRecipient, GasPrice: big.NewInt(1), GasLimit: 21000,
	})
	require.ErrorIs(t, err, cause)
}

func TestSubmitValidation(t *testing.T) {
	b := &fakeBroadcaster{}
	tr := New(testSigner(t), b, big.NewInt(1))

	_, err := tr.Submit(context.Background(), txqueue.TxRequest{To: "bob", GasPrice: big.NewInt(1)})
	require.Error(t, err)
	_, err = tr.Submit(context.Background(), txqueue.TxRequest{To: testRecipient})
	require.Error(t, err)
	assert.Empty(t, b.raw)
}
