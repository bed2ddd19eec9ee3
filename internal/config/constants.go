package config

import "time"

// Gas limits used as EstimateGas fallbacks when the node cannot simulate the tx.
const (
	GasLimitETHTransfer   = uint64(21_000) // native transfer, cancel, batch item
	GasLimitERC20Transfer = uint64(60_000) // ERC-20 transfer or approve
	GasLimitERC20Mint     = uint64(80_000) // ERC-20 mint
)

// Timeouts shared by the commands.
const (
	RPCTimeout       = 15 * time.Second // one JSON-RPC round trip
	TxConfirmTimeout = 3 * time.Minute  // send --wait
)

// Event feed.
const (
	EventFeedSize     = 20
	EventPollInterval = 4 * time.Second
	EventLookback     = uint64(1_000) // blocks scanned on the first poll
)

// Environment variables.
const (
	EnvConfigDir = "W3TX_CONFIG_DIR"
	EnvRPCURL    = "W3TX_RPC_URL"
	EnvWallet    = "W3TX_WALLET"
	EnvLogLevel  = "W3TX_LOG_LEVEL"
)
