package chain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownNetwork is returned when a chain ID or name is not registered.
var ErrUnknownNetwork = errors.New("unknown network")

// Network holds display metadata for an EVM chain.
type Network struct {
	Name     string `json:"name"`
	Display  string `json:"display"`
	ChainID  int64  `json:"chain_id"`
	Currency string `json:"currency"`
	Explorer string `json:"explorer"` // empty for local chains
	Testnet  bool   `json:"testnet"`
}

// TxURL returns the explorer page of a transaction, or "" without an explorer.
func (n Network) TxURL(hash string) string {
	if n.Explorer == "" {
		return ""
	}
	return n.Explorer + "/tx/" + hash
}

// AddressURL returns the explorer page of an address.
func (n Network) AddressURL(addr string) string {
	if n.Explorer == "" {
		return ""
	}
	return n.Explorer + "/address/" + addr
}

var (
	networks = []Network{
		{Name: "ethereum", Display: "Ethereum", ChainID: 1, Currency: "ETH", Explorer: "https://etherscan.io"},
		{Name: "sepolia", Display: "Sepolia", ChainID: 11155111, Currency: "ETH", Explorer: "https://sepolia.etherscan.io", Testnet: true},
		{Name: "holesky", Display: "Holesky", ChainID: 17000, Currency: "ETH", Explorer: "https://holesky.etherscan.io", Testnet: true},
		{Name: "base", Display: "Base", ChainID: 8453, Currency: "ETH", Explorer: "https://basescan.org"},
		{Name: "base-sepolia", Display: "Base Sepolia", ChainID: 84532, Currency: "ETH", Explorer: "https://sepolia.basescan.org", Testnet: true},
		{Name: "optimism", Display: "Optimism", ChainID: 10, Currency: "ETH", Explorer: "https://optimistic.etherscan.io"},
		{Name: "op-sepolia", Display: "OP Sepolia", ChainID: 11155420, Currency: "ETH", Explorer: "https://sepolia-optimism.etherscan.io", Testnet: true},
		{Name: "arbitrum", Display: "Arbitrum", ChainID: 42161, Currency: "ETH", Explorer: "https://arbiscan.io"},
		{Name: "arb-sepolia", Display: "Arb Sepolia", ChainID: 421614, Currency: "ETH", Explorer: "https://sepolia.arbiscan.io", Testnet: true},
		{Name: "polygon", Display: "Polygon", ChainID: 137, Currency: "POL", Explorer: "https://polygonscan.com"},
		{Name: "amoy", Display: "Amoy", ChainID: 80002, Currency: "POL", Explorer: "https://amoy.polygonscan.com", Testnet: true},
		{Name: "bnb", Display: "BNB Chain", ChainID: 56, Currency: "BNB", Explorer: "https://bscscan.com"},
		{Name: "linea", Display: "Linea", ChainID: 59144, Currency: "ETH", Explorer: "https://lineascan.build"},
		{Name: "scroll", Display: "Scroll", ChainID: 534352, Currency: "ETH", Explorer: "https://scrollscan.com"},
		{Name: "gnosis", Display: "Gnosis", ChainID: 100, Currency: "xDAI", Explorer: "https://gnosisscan.io"},
		{Name: "hardhat", Display: "Hardhat / Anvil", ChainID: 31337, Currency: "ETH", Testnet: true},
		{Name: "ganache", Display: "Ganache", ChainID: 1337, Currency: "ETH", Testnet: true},
	}
	networksByID   = make(map[int64]Network, len(networks))
	networksByName = make(map[string]Network, len(networks))
)

func init() {
	for _, n := range networks {
		networksByID[n.ChainID] = n
		networksByName[n.Name] = n
	}
}

// NetworkByID finds a network by chain ID.
func NetworkByID(id int64) (Network, error) {
	n, ok := networksByID[id]
	if !ok {
		return Network{}, fmt.Errorf("%w: chain id %d", ErrUnknownNetwork, id)
	}
	return n, nil
}

// NetworkByName finds a network by its slug (e.g. "base-sepolia").
func NetworkByName(name string) (Network, error) {
	n, ok := networksByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Network{}, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
	}
	return n, nil
}

// DescribeNetwork returns the registered network for id, or a generic entry
// named after the chain ID.
func DescribeNetwork(id int64) Network {
	if n, err := NetworkByID(id); err == nil {
		return n
	}
	return Network{
		Name:     fmt.Sprintf("chain-%d", id),
		Display:  fmt.Sprintf("Chain %d", id),
		ChainID:  id,
		Currency: "ETH",
	}
}

// Networks returns every registered network sorted by chain ID.
func Networks() []Network {
	out := append([]Network(nil), networks...)
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}
