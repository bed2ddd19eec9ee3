package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockServer answers every request with eth_blockNumber = block.
func blockServer(t *testing.T, block uint64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":"0x%x"}`, block)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func ep(url string, latency time.Duration, block uint64) Endpoint {
	return Endpoint{URL: url, Latency: latency, BlockNumber: block}
}

// ---------------------------------------------------------------------------
// Pick
// ---------------------------------------------------------------------------

func TestPickFastest(t *testing.T) {
	got, err := Pick([]Endpoint{
		ep("http://slow", 200*time.Millisecond, 100),
		ep("http://fast", 30*time.Millisecond, 100),
		ep("http://medium", 80*time.Millisecond, 100),
	}, StrategyFastest)
	require.NoError(t, err)
	assert.Equal(t, "http://fast", got.URL)
}

func TestPickSkipsLaggingNode(t *testing.T) {
	got, err := Pick([]Endpoint{
		ep("http://fresh", 50*time.Millisecond, 1000),
		ep("http://stale", 10*time.Millisecond, 990),
	}, StrategyFastest)
	require.NoError(t, err)
	assert.Equal(t, "http://fresh", got.URL, "stale node must lose even when faster")
}

func TestPickFailoverKeepsConfigOrder(t *testing.T) {
	down := ep("http://primary", 0, 0)
	down.Err = errors.New("connection refused")

	got, err := Pick([]Endpoint{
		down,
		ep("http://secondary", 90*time.Millisecond, 100),
		ep("http://tertiary", 10*time.Millisecond, 100),
	}, StrategyFailover)
	require.NoError(t, err)
	assert.Equal(t, "http://secondary", got.URL)
}

func TestPickAllUnhealthy(t *testing.T) {
	down := ep("http://a", 0, 0)
	down.Err = errors.New("timeout")
	_, err := Pick([]Endpoint{down}, StrategyFastest)
	assert.ErrorIs(t, err, ErrNoHealthyRPC)

	_, err = Pick(nil, StrategyFailover)
	assert.ErrorIs(t, err, ErrNoHealthyRPC)
}

func TestBehindIgnoresFailedProbe(t *testing.T) {
	down := ep("http://a", 0, 0)
	down.Err = errors.New("x")
	assert.Equal(t, uint64(0), down.Behind(100))
	assert.Equal(t, uint64(7), ep("http://b", 0, 93).Behind(100))
	assert.Equal(t, uint64(0), ep("http://c", 0, 101).Behind(100))
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyFailover, s)

	s, err = ParseStrategy("fastest")
	require.NoError(t, err)
	assert.Equal(t, StrategyFastest, s)

	_, err = ParseStrategy("round-robin")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Probe / Select
// ---------------------------------------------------------------------------

func TestProbeRecordsBlockAndFailure(t *testing.T) {
	srv := blockServer(t, 1000)

	results := Probe(context.Background(), []string{srv.URL, "http://127.0.0.1:1"}, time.Second)
	require.Len(t, results, 2)

	assert.True(t, results[0].Healthy())
	assert.Equal(t, srv.URL, results[0].URL)
	assert.Equal(t, uint64(1000), results[0].BlockNumber)
	assert.Greater(t, results[0].Latency, time.Duration(0))

	assert.False(t, results[1].Healthy())
}

func TestSelectSingleURLSkipsProbe(t *testing.T) {
	url, results, err := Select(context.Background(), []string{"http://unreachable.invalid"}, StrategyFastest, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "http://unreachable.invalid", url)
	assert.Nil(t, results)
}

func TestSelectFailsOverToLiveNode(t *testing.T) {
	live := blockServer(t, 42)

	url, results, err := Select(context.Background(), []string{"http://127.0.0.1:1", live.URL}, StrategyFailover, time.Second)
	require.NoError(t, err)
	assert.Equal(t, live.URL, url)
	assert.Len(t, results, 2)
}

func TestSelectNoneHealthy(t *testing.T) {
	_, results, err := Select(context.Background(), []string{"http://127.0.0.1:1", "http://127.0.0.1:2"}, StrategyFailover, time.Second)
	assert.ErrorIs(t, err, ErrNoHealthyRPC)
	assert.Len(t, results, 2)
}
