package txqueue

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultMonitorInterval is how often pending entries are checked.
const DefaultMonitorInterval = 5 * time.Second

// FailureClassifier decides whether a receipt lookup error means the
// transaction has failed for good. Returning false keeps it pending and
// retries on the next tick.
type FailureClassifier func(hash string, err error) bool

// RetryAll is the default classifier: every lookup error is transient.
func RetryAll(string, error) bool { return false }

// TickReport summarises one monitor pass.
type TickReport struct {
	Checked   int
	Confirmed []string
	Failed    []string
	Errors    int
}

// Changed reports whether the pass moved any entry out of pending.
func (r TickReport) Changed() bool { return len(r.Confirmed)+len(r.Failed) > 0 }

// Monitor polls receipts for every pending entry of a Registry.
type Monitor struct {
	registry *Registry
	receipts ReceiptSource
	interval time.Duration
	classify FailureClassifier
	clock    Clock
	log      *zap.Logger
	onTick   func(TickReport)
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithFailureClassifier overrides how lookup errors are treated.
func WithFailureClassifier(fn FailureClassifier) MonitorOption {
	return func(m *Monitor) {
		if fn != nil {
			m.classify = fn
		}
	}
}

// WithMonitorClock sets the clock that paces Run.
func WithMonitorClock(c Clock) MonitorOption {
	return func(m *Monitor) { m.clock = c }
}

// WithMonitorLogger sets the logger.
func WithMonitorLogger(l *zap.Logger) MonitorOption {
	return func(m *Monitor) { m.log = l }
}

// OnTick registers a hook called after every pass of Run.
func OnTick(fn func(TickReport)) MonitorOption {
	return func(m *Monitor) { m.onTick = fn }
}

// NewMonitor creates a monitor over registry.
func NewMonitor(registry *Registry, receipts ReceiptSource, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		registry: registry,
		receipts: receipts,
		interval: DefaultMonitorInterval,
		classify: RetryAll,
		clock:    SystemClock(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Interval returns the polling interval.
func (m *Monitor) Interval() time.Duration { return m.interval }

// Run polls until ctx is done. The first pass happens after one interval.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.clock.After(m.interval):
		}
		report := m.Tick(ctx)
		if m.onTick != nil {
			m.onTick(report)
		}
	}
}

// Tick checks every pending entry once.
func (m *Monitor) Tick(ctx context.Context) TickReport {
	var report TickReport
	for _, tx := range m.registry.Pending() {
		if ctx.Err() != nil {
			return report
		}
		// The entry may have been removed or superseded since the snapshot.
		current, ok := m.registry.Get(tx.Hash)
		if !ok || current.Status != StatusPending {
			continue
		}
		report.Checked++

		receipt, err := m.receipts.TransactionReceipt(ctx, tx.Hash)
		if err != nil {
			report.Errors++
			if m.classify(tx.Hash, err) {
				if m.update(tx.Hash, StatusFailed) {
					report.Failed = append(report.Failed, tx.Hash)
				}
				continue
			}
			m.log.Debug("receipt lookup failed, retrying next tick",
				zap.String("hash", tx.Hash),
				zap.Error(errors.Join(ErrTransientQuery, err)),
			)
			continue
		}
		if receipt == nil {
			continue
		}

		if receipt.Success {
			if m.update(tx.Hash, StatusConfirmed) {
				report.Confirmed = append(report.Confirmed, tx.Hash)
			}
		} else if m.update(tx.Hash, StatusFailed) {
			report.Failed = append(report.Failed, tx.Hash)
		}
	}
	return report
}

func (m *Monitor) update(hash string, status Status) bool {
	if err := m.registry.UpdateStatus(hash, status); err != nil {
		// Removed or superseded while the lookup was in flight.
		m.log.Debug("skipping status update", zap.String("hash", hash), zap.Error(err))
		return false
	}
	m.log.Info("transaction settled", zap.String("hash", hash), zap.String("status", string(status)))
	return true
}
