package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/Mohsinsiddi/w3tx/internal/txqueue"
)

// queueFileVersion is bumped whenever QueueFile changes shape.
const queueFileVersion = 1

// QueuePath returns the path of queue.json.
func (c *Config) QueuePath() string {
	return filepath.Join(c.configDir, queueFile)
}

// LoadQueue reads the persisted queue. A missing file yields an empty queue.
func (c *Config) LoadQueue() ([]txqueue.QueuedTransaction, error) {
	qf, err := loadJSON[QueueFile](c.QueuePath())
	if err != nil {
		return nil, fmt.Errorf("reading queue: %w", err)
	}
	if qf.Version > queueFileVersion {
		return nil, fmt.Errorf("queue file version %d is newer than supported (%d)", qf.Version, queueFileVersion)
	}
	return qf.Transactions, nil
}

// SaveQueue persists the full queue, replacing the previous snapshot.
func (c *Config) SaveQueue(txs []txqueue.QueuedTransaction) error {
	if txs == nil {
		txs = []txqueue.QueuedTransaction{}
	}
	qf := QueueFile{
		Version:      queueFileVersion,
		SavedAt:      time.Now().UTC().Format(time.RFC3339),
		Transactions: txs,
	}
	if err := saveJSON(c.QueuePath(), qf); err != nil {
		return fmt.Errorf("writing queue: %w", err)
	}
	return nil
}
