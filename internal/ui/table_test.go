package ui

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/Mohsinsiddi/w3tx/internal/txqueue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// KeyValueBlock
// ---------------------------------------------------------------------------

func TestKeyValueBlockKeepsPairOrder(t *testing.T) {
	result := KeyValueBlock("Transaction Sent", [][2]string{
		{"Hash", "0xabc"},
		{"Nonce", "7"},
		{"Gas Price", "1.5 Gwei"},
	})
	assert.Contains(t, result, "Transaction Sent")
	assert.Contains(t, result, "╭", "rounded border")

	hash, nonce, gas := strings.Index(result, "0xabc"), strings.Index(result, "Nonce"), strings.Index(result, "1.5 Gwei")
	require.Greater(t, hash, -1)
	assert.Less(t, hash, nonce)
	assert.Less(t, nonce, gas)
}

func TestKeyValueBlockWithoutTitleOrPairs(t *testing.T) {
	assert.Contains(t, KeyValueBlock("", [][2]string{{"Key", "Value"}}), "Value")
	assert.Contains(t, KeyValueBlock("Queue Stats", nil), "Queue Stats")
}

// ---------------------------------------------------------------------------
// Table
// ---------------------------------------------------------------------------

func TestTableRender(t *testing.T) {
	tbl := NewTable([]Column{
		{Title: "Endpoint", Width: 16},
		{Title: "Status", Width: 8},
		{Title: "Block", Width: 6},
	})
	assert.Equal(t, -1, tbl.SelIdx)

	tbl.AddRow(Row{"http://primary", "down"})
	tbl.AddRow(Row{"http://fallback", "ok", "42"})
	tbl.SelIdx = 1
	result := tbl.Render()

	assert.Contains(t, result, "Endpoint")
	assert.Contains(t, result, "--------", "header divider")
	assert.Contains(t, result, "down", "short rows render without panicking")
	assert.Less(t, strings.Index(result, "primary"), strings.Index(result, "fallback"))
}

func TestTableTruncatesByRune(t *testing.T) {
	tbl := NewTable([]Column{{Title: "Hash", Width: 8}})
	tbl.AddRow(Row{"0x12…5678abcdef"})
	result := tbl.Render()
	assert.Contains(t, result, "0x12…567")
	assert.NotContains(t, result, "0x12…5678")
}

// ---------------------------------------------------------------------------
// Queue table
// ---------------------------------------------------------------------------

func TestQueueRow(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	tx := txqueue.QueuedTransaction{
		Hash:        "0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef",
		Nonce:       42,
		Status:      txqueue.StatusCancelled,
		Kind:        txqueue.KindTransfer,
		GasPrice:    big.NewInt(1_500_000_000),
		Description: "Send 1 ETH",
		CreatedAt:   now.Add(-90 * time.Second),
		ReplacedBy:  "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaabbbb",
	}
	row := QueueRow(tx, now)
	assert.Equal(t, Row{"0x1234…cdef", "42", "cancelled", "transfer", "1.5", "1m", "Send 1 ETH → 0xaaaa…bbbb"}, row)
}

func TestQueueTableKeepsOrder(t *testing.T) {
	now := time.Now()
	txs := []txqueue.QueuedTransaction{
		{Hash: "0xnewest", Status: txqueue.StatusPending, CreatedAt: now},
		{Hash: "0xoldest", Status: txqueue.StatusConfirmed, CreatedAt: now.Add(-time.Hour)},
	}
	result := QueueTable(txs, now).Render()
	assert.Less(t, strings.Index(result, "0xnewest"), strings.Index(result, "0xoldest"))
	assert.Contains(t, result, "DESCRIPTION")
}

func TestStatsLine(t *testing.T) {
	line := StatsLine(txqueue.Stats{Pending: 2, Confirmed: 3, Failed: 1, Cancelled: 4, Total: 10})
	for _, want := range []string{"2 pending", "3 confirmed", "1 failed", "4 cancelled", "10 total"} {
		assert.Contains(t, line, want)
	}
}

