// Package rpc chooses which node a command talks to when the config lists
// more than one endpoint.
package rpc

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoHealthyRPC is returned when every endpoint failed its probe.
var ErrNoHealthyRPC = errors.New("no healthy RPC endpoint available")

// Strategy decides how a healthy endpoint is chosen.
type Strategy string

const (
	// StrategyFailover takes the first healthy endpoint in config order.
	StrategyFailover Strategy = "failover"
	// StrategyFastest takes the lowest-latency endpoint that is not lagging.
	StrategyFastest Strategy = "fastest"

	// Endpoints more than this many blocks behind the best are skipped.
	staleBlockThreshold = 3
)

// ParseStrategy maps a config string to a Strategy. Empty means failover.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyFailover:
		return StrategyFailover, nil
	case StrategyFastest:
		return StrategyFastest, nil
	}
	return "", fmt.Errorf("unknown rpc strategy %q (want failover or fastest)", s)
}

// Endpoint is the result of probing one node.
type Endpoint struct {
	URL         string
	Latency     time.Duration
	BlockNumber uint64
	Err         error
}

// Healthy reports whether the probe succeeded.
func (e Endpoint) Healthy() bool { return e.Err == nil }

// Behind returns how many blocks e trails best by.
func (e Endpoint) Behind(best uint64) uint64 {
	if !e.Healthy() || e.BlockNumber >= best {
		return 0
	}
	return best - e.BlockNumber
}

// Pick returns the endpoint the strategy selects from probed results.
// Lagging endpoints are never chosen while a fresh one exists.
func Pick(endpoints []Endpoint, strategy Strategy) (Endpoint, error) {
	best := BestBlock(endpoints)

	var winner *Endpoint
	for i := range endpoints {
		e := &endpoints[i]
		if !e.Healthy() || e.Behind(best) > staleBlockThreshold {
			continue
		}
		if strategy == StrategyFailover {
			return *e, nil
		}
		if winner == nil || e.Latency < winner.Latency {
			winner = e
		}
	}
	if winner == nil {
		return Endpoint{}, ErrNoHealthyRPC
	}
	return *winner, nil
}

// BestBlock returns the highest block any healthy endpoint reported.
func BestBlock(endpoints []Endpoint) uint64 {
	var best uint64
	for _, e := range endpoints {
		if e.Healthy() && e.BlockNumber > best {
			best = e.BlockNumber
		}
	}
	return best
}
