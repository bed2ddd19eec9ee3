package wallet_test

import (
	"testing"

	"github.com/Mohsinsiddi/w3tx/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	addr1   = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	addr2   = "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
	addr3   = "0x90F79bf6EB2c4f870365E785982E1f101E93b906"
	testKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

func watchOnly(addr string) *wallet.Wallet {
	return &wallet.Wallet{Address: addr, Type: wallet.TypeWatchOnly}
}

func TestAddWatchOnlyWallet(t *testing.T) {
	mgr := wallet.NewManager(wallet.WithInMemoryStore())
	require.NoError(t, mgr.Add("mywallet", watchOnly(addr1)))

	w, err := mgr.Get("mywallet")
	require.NoError(t, err)
	assert.Equal(t, "mywallet", w.Name)
	assert.Equal(t, wallet.TypeWatchOnly, w.Type)
	assert.NotEmpty(t, w.CreatedAt)
}

func TestAddDuplicateWalletErrors(t *testing.T) {
	mgr := wallet.NewManager(wallet.WithInMemoryStore())
	require.NoError(t, mgr.Add("dup", watchOnly(addr1)))
	assert.ErrorIs(t, mgr.Add("dup", watchOnly(addr2)), wallet.ErrWalletExists)
}

func TestAddInvalidAddress(t *testing.T) {
	mgr := wallet.NewManager(wallet.WithInMemoryStore())
	assert.ErrorIs(t, mgr.Add("bad", watchOnly("0x123...")), wallet.ErrInvalidAddress)
}

func TestAddSigningWallet(t *testing.T) {
	ks := wallet.NewInMemoryKeystore()
	mgr := wallet.NewManager(wallet.WithInMemoryStore(), wallet.WithKeystore(ks))
	require.NoError(t, mgr.AddWithKey("signer", testKey))

	w, err := mgr.Get("signer")
	require.NoError(t, err)
	assert.Equal(t, wallet.TypeSigning, w.Type)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", w.Address)

	stored, err := ks.Retrieve(w.KeyRef)
	require.NoError(t, err)
	assert.Equal(t, testKey[2:], stored)
}

func TestInvalidPrivateKey(t *testing.T) {
	mgr := wallet.NewManager(wallet.WithInMemoryStore())
	assert.ErrorIs(t, mgr.AddWithKey("bad", "not-a-valid-key"), wallet.ErrInvalidKey)
}

func TestListWalletsSorted(t *testing.T) {
	mgr := wallet.NewManager(wallet.WithInMemoryStore())
	mgr.Add("w3", watchOnly(addr3)) //nolint:errcheck
	mgr.Add("w1", watchOnly(addr1)) //nolint:errcheck
	mgr.Add("w2", watchOnly(addr2)) //nolint:errcheck

	wallets := mgr.List()
	require.Len(t, wallets, 3)
	assert.Equal(t, "w1", wallets[0].Name)
	assert.Equal(t, "w3", wallets[2].Name)
}

func TestRemoveWalletDeletesKey(t *testing.T) {
	ks := wallet.NewInMemoryKeystore()
	mgr := wallet.NewManager(wallet.WithInMemoryStore(), wallet.WithKeystore(ks))
	require.NoError(t, mgr.AddWithKey("s", testKey))
	w, _ := mgr.Get("s")

	require.NoError(t, mgr.Remove("s"))
	_, err := mgr.Get("s")
	assert.ErrorIs(t, err, wallet.ErrWalletNotFound)
	_, err = ks.Retrieve(w.KeyRef)
	assert.Error(t, err)

	assert.ErrorIs(t, mgr.Remove("ghost"), wallet.ErrWalletNotFound)
}

func TestSetDefault(t *testing.T) {
	mgr := wallet.NewManager(wallet.WithInMemoryStore())
	mgr.Add("w1", watchOnly(addr1)) //nolint:errcheck
	mgr.Add("w2", watchOnly(addr2)) //nolint:errcheck
	assert.Nil(t, mgr.Default())

	require.NoError(t, mgr.SetDefault("w2"))
	def := mgr.Default()
	require.NotNil(t, def)
	assert.Equal(t, "w2", def.Name)

	assert.ErrorIs(t, mgr.SetDefault("ghost"), wallet.ErrWalletNotFound)
}

func TestDefaultWalletWithSingleWallet(t *testing.T) {
	mgr := wallet.NewManager(wallet.WithInMemoryStore())
	mgr.Add("only", watchOnly(addr1)) //nolint:errcheck

	def := mgr.Default()
	require.NotNil(t, def)
	assert.Equal(t, "only", def.Name)
}

func TestManagerSigner(t *testing.T) {
	mgr := wallet.NewManager(wallet.WithInMemoryStore())
	require.NoError(t, mgr.AddWithKey("s", testKey))
	mgr.Add("watch", watchOnly(addr1)) //nolint:errcheck

	s, err := mgr.Signer("s")
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", s.Address())

	_, err = mgr.Signer("watch")
	assert.ErrorIs(t, err, wallet.ErrWatchOnly)
	_, err = mgr.Signer("ghost")
	assert.ErrorIs(t, err, wallet.ErrWalletNotFound)
}

func TestGenerateWallet(t *testing.T) {
	ks := wallet.NewInMemoryKeystore()
	mgr := wallet.NewManager(wallet.WithInMemoryStore(), wallet.WithKeystore(ks))

	w, hexKey, err := mgr.Generate("fresh")
	require.NoError(t, err)
	assert.Len(t, hexKey, 64)
	assert.Equal(t, wallet.TypeSigning, w.Type)

	// Re-importing the key yields the same address.
	other := wallet.NewManager(wallet.WithInMemoryStore())
	require.NoError(t, other.AddWithKey("copy", hexKey))
	copied, err := other.Get("copy")
	require.NoError(t, err)
	assert.Equal(t, w.Address, copied.Address)

	_, _, err = mgr.Generate("fresh")
	assert.ErrorIs(t, err, wallet.ErrWalletExists)
}
