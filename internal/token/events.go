package token

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/Mohsinsiddi/w3tx/internal/chain"
	"github.com/Mohsinsiddi/w3tx/internal/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// EventType is the decoded ERC-20 event name.
type EventType string

const (
	EventTransfer EventType = "Transfer"
	EventApproval EventType = "Approval"
)

// Event is one decoded Transfer or Approval log. For approvals From is the
// owner and To the spender.
type Event struct {
	ID          string    `json:"id"` // txhash-logindex
	Type        EventType `json:"type"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Value       *big.Int  `json:"value"`
	BlockNumber uint64    `json:"block_number"`
	TxHash      string    `json:"tx_hash"`
	LogIndex    uint64    `json:"log_index"`
	SeenAt      time.Time `json:"seen_at"`
}

// DecodeLog decodes a Transfer or Approval log.
func DecodeLog(l chain.LogEntry) (Event, error) {
	if len(l.Topics) != 3 {
		return Event{}, fmt.Errorf("decoding log %s: expected 3 topics, got %d", l.TxHash, len(l.Topics))
	}

	var typ EventType
	switch common.HexToHash(l.Topics[0]) {
	case TransferTopic:
		typ = EventTransfer
	case ApprovalTopic:
		typ = EventApproval
	default:
		return Event{}, fmt.Errorf("decoding log %s: unknown topic %s", l.TxHash, l.Topics[0])
	}

	data, err := hexutil.Decode(l.Data)
	if err != nil {
		return Event{}, fmt.Errorf("decoding log %s data: %w", l.TxHash, err)
	}
	out, err := erc20ABI.Unpack(string(typ), data)
	if err != nil {
		return Event{}, fmt.Errorf("decoding %s: %w", typ, err)
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return Event{}, fmt.Errorf("decoding %s: unexpected value type %T", typ, out[0])
	}

	return Event{
		ID:          fmt.Sprintf("%s-%d", l.TxHash, l.Index()),
		Type:        typ,
		From:        common.HexToAddress(l.Topics[1]).Hex(),
		To:          common.HexToAddress(l.Topics[2]).Hex(),
		Value:       value,
		BlockNumber: l.Block(),
		TxHash:      l.TxHash,
		LogIndex:    l.Index(),
	}, nil
}

// LogSource queries logs and the chain head.
type LogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	GetLogs(ctx context.Context, filter chain.LogFilter) ([]chain.LogEntry, error)
}

// Feed polls a token's Transfer and Approval events and keeps the newest
// ones, newest first.
type Feed struct {
	src      LogSource
	token    string
	size     int
	lookback uint64
	now      func() time.Time

	mu     sync.Mutex
	next   uint64 // first block not yet scanned; 0 before the first poll
	events []Event
	seen   map[string]struct{}
}

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithFeedSize sets how many events are kept.
func WithFeedSize(n int) FeedOption {
	return func(f *Feed) {
		if n > 0 {
			f.size = n
		}
	}
}

// WithLookback sets how many blocks the first poll scans.
func WithLookback(blocks uint64) FeedOption {
	return func(f *Feed) { f.lookback = blocks }
}

// NewFeed creates a Feed for token.
func NewFeed(src LogSource, token string, opts ...FeedOption) *Feed {
	f := &Feed{
		src:      src,
		token:    token,
		size:     config.EventFeedSize,
		lookback: config.EventLookback,
		now:      time.Now,
		seen:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Poll scans blocks since the previous poll and returns the new events,
// newest first. Logs that fail to decode are skipped.
func (f *Feed) Poll(ctx context.Context) ([]Event, error) {
	head, err := f.src.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading head: %w", err)
	}

	f.mu.Lock()
	from := f.next
	f.mu.Unlock()
	if from == 0 {
		from = 1
		if head > f.lookback {
			from = head - f.lookback + 1
		}
	}
	if head == 0 || from > head {
		return nil, nil
	}

	logs, err := f.src.GetLogs(ctx, chain.LogFilter{
		Address:   f.token,
		Topics:    [][]common.Hash{{TransferTopic, ApprovalTopic}},
		FromBlock: from,
		ToBlock:   head,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching logs: %w", err)
	}

	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].Block() != logs[j].Block() {
			return logs[i].Block() > logs[j].Block()
		}
		return logs[i].Index() > logs[j].Index()
	})

	now := f.now()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next = head + 1

	var fresh []Event
	for _, l := range logs {
		ev, err := DecodeLog(l)
		if err != nil {
			continue
		}
		if _, dup := f.seen[ev.ID]; dup {
			continue
		}
		ev.SeenAt = now
		fresh = append(fresh, ev)
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	f.events = append(append([]Event(nil), fresh...), f.events...)
	if len(f.events) > f.size {
		for _, dropped := range f.events[f.size:] {
			delete(f.seen, dropped.ID)
		}
		f.events = f.events[:f.size]
	}
	for _, ev := range f.events {
		f.seen[ev.ID] = struct{}{}
	}
	if len(fresh) > f.size {
		fresh = fresh[:f.size]
	}
	return fresh, nil
}

// Events returns the kept events, newest first.
func (f *Feed) Events() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}

// Clear drops the kept events. Scanning continues from the last block seen.
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
	f.seen = make(map[string]struct{})
}
