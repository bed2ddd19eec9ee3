package ui

import (
	"testing"

	"github.com/Mohsinsiddi/w3tx/internal/txqueue"
	"github.com/stretchr/testify/assert"
)

func TestInfoContainsPrefixAndMessage(t *testing.T) {
	result := Info("test message")
	assert.Contains(t, result, "ℹ")
	assert.Contains(t, result, "test message")
}

func TestHintContainsPrefixAndMessage(t *testing.T) {
	result := Hint("try this command")
	assert.Contains(t, result, "💡")
	assert.Contains(t, result, "try this command")
}

func TestSuccessWarnErrPrefixes(t *testing.T) {
	assert.Contains(t, Success("done"), "✓ done")
	assert.Contains(t, Warn("careful"), "⚠ careful")
	assert.Contains(t, Err("failed"), "✗ failed")
}

func TestInfoDifferentFromHint(t *testing.T) {
	assert.NotEqual(t, Info("message"), Hint("message"))
}

func TestAllFormattersReturnNonEmpty(t *testing.T) {
	formatters := map[string]func(string) string{
		"Success":   Success,
		"Warn":      Warn,
		"Err":       Err,
		"Info":      Info,
		"Hint":      Hint,
		"Addr":      Addr,
		"Val":       Val,
		"Meta":      Meta,
		"ChainName": ChainName,
	}
	for name, fn := range formatters {
		t.Run(name, func(t *testing.T) {
			assert.Contains(t, fn("test"), "test", "%s should contain the input message", name)
		})
	}
}

func TestStatusLabels(t *testing.T) {
	assert.Contains(t, Status(txqueue.StatusPending), "pending")
	assert.Contains(t, Status(txqueue.StatusConfirmed), "confirmed")
	assert.Contains(t, Status(txqueue.StatusFailed), "failed")
	assert.Contains(t, Status(txqueue.StatusCancelled), "cancelled")
	assert.Contains(t, Status("weird"), "weird")
}

func TestTruncateAddr(t *testing.T) {
	assert.Equal(t, "0x1234", TruncateAddr("0x1234"))
	assert.Equal(t, "0x12345678", TruncateAddr("0x12345678"))
	assert.Equal(t, "0x1234…5678", TruncateAddr("0x1234567890abcdef1234567890abcdef12345678"))
	assert.Equal(t, "", TruncateAddr(""))
}

func TestBannerContainsBranding(t *testing.T) {
	result := Banner()
	assert.NotEmpty(t, result)
	assert.Contains(t, result, "transaction queue")
}

func TestDangerBoxContainsContent(t *testing.T) {
	result := DangerBox("my secret content")
	assert.Contains(t, result, "my secret content")
}
