package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/Mohsinsiddi/w3tx/internal/chain"
)

// DefaultProbeTimeout bounds a single eth_blockNumber probe.
const DefaultProbeTimeout = 5 * time.Second

// Probe asks every url for its latest block concurrently and records the
// round-trip latency. Results keep the order of urls.
func Probe(ctx context.Context, urls []string, timeout time.Duration) []Endpoint {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	out := make([]Endpoint, len(urls))

	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			out[i] = probeOne(ctx, url, timeout)
		}(i, url)
	}
	wg.Wait()
	return out
}

func probeOne(ctx context.Context, url string, timeout time.Duration) Endpoint {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	block, err := chain.NewClient(url).BlockNumber(ctx)
	return Endpoint{
		URL:         url,
		Latency:     time.Since(start),
		BlockNumber: block,
		Err:         err,
	}
}

// Select probes urls and picks one with strategy. A single url is returned
// without probing so the common one-node setup costs no extra round trip.
func Select(ctx context.Context, urls []string, strategy Strategy, timeout time.Duration) (string, []Endpoint, error) {
	if len(urls) == 0 {
		return "", nil, ErrNoHealthyRPC
	}
	if len(urls) == 1 {
		return urls[0], nil, nil
	}
	results := Probe(ctx, urls, timeout)
	winner, err := Pick(results, strategy)
	if err != nil {
		return "", results, err
	}
	return winner.URL, results, nil
}
