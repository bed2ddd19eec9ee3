package config

import "github.com/Mohsinsiddi/w3tx/internal/txqueue"

// Config holds all w3tx configuration.
type Config struct {
	RPCURL          string            `json:"rpc_url"`
	RPCFallbacks    []string          `json:"rpc_fallbacks,omitempty"`
	RPCStrategy     string            `json:"rpc_strategy,omitempty"` // "failover" | "fastest"
	ChainID         int64             `json:"chain_id"` // 0 = ask the node
	DefaultWallet   string            `json:"default_wallet"`
	MonitorInterval int               `json:"monitor_interval"` // seconds
	SpeedUpPercent  int               `json:"speed_up_percent"`
	BatchGrace      int               `json:"batch_grace"` // seconds
	LogLevel        string            `json:"log_level"`
	LogFormat       string            `json:"log_format"` // "console" | "json"
	Tokens          map[string]string `json:"tokens"`     // alias -> contract address

	// internal: config dir path used for Save()
	configDir string
}

// QueueFile is the structure of queue.json.
type QueueFile struct {
	Version      int                         `json:"version"`
	SavedAt      string                      `json:"saved_at"`
	Transactions []txqueue.QueuedTransaction `json:"transactions"`
}
