package tcpmodel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnection_InitialState(t *testing.T) {
	c := NewConnection(150, 1_638_400, 30, true)
	require.NotNil(t, c)
	assert.False(t, c.Warmed())
	assert.Equal(t, float64(InitialCongestionWindow), c.CongestionWindow())
}

func TestDownloadTime_ZeroBytes(t *testing.T) {
	c := NewConnection(100, 1_638_400, 0, true)
	res := c.DownloadTime(0, 0, math.Inf(1))
	assert.Equal(t, float64(0), res.BytesDownloaded)
	assert.InDelta(t, 300, res.TimeElapsed, 1e-9)
	assert.Equal(t, 3, res.RoundTrips)
}

func TestDownloadTime_ExactlyOneInitialWindow(t *testing.T) {
	c := NewConnection(100, 1_638_400, 0, true)
	res := c.DownloadTime(InitialCongestionWindow*SegmentSize, 0, math.Inf(1))
	assert.InDelta(t, 300, res.TimeElapsed, 1e-9)
	assert.Equal(t, float64(InitialCongestionWindow*SegmentSize), res.BytesDownloaded)
	assert.Equal(t, 3, res.RoundTrips)
}

func TestDownloadTime_WarmedNoSSLHandshakeIsOneWay(t *testing.T) {
	cold := NewConnection(100, 1_638_400, 0, false)
	warm := NewConnection(100, 1_638_400, 0, false)
	warm.SetWarmed(true)

	coldRes := cold.DownloadTime(1, 0, math.Inf(1))
	warmRes := warm.DownloadTime(1, 0, math.Inf(1))

	assert.Less(t, warmRes.TimeElapsed, coldRes.TimeElapsed)
	// Warm TTFB: one-way handshake (50) + response (0) + one-way back (50).
	assert.InDelta(t, 100, warmRes.TimeElapsed, 1e-9)
}

func TestDownloadTime_GrowthCappedByBandwidthDelayProduct(t *testing.T) {
	c := NewConnection(100, 1_638_400, 0, true)
	maxCwnd := c.MaximumCongestionWindow()
	res := c.DownloadTime(100_000, 0, math.Inf(1))
	assert.LessOrEqual(t, res.CongestionWindow, math.Max(maxCwnd, 1))
}

func TestDownloadTime_ContinuationCreditsNoExtraBytes(t *testing.T) {
	c := NewConnection(100, 1_638_400, 0, true)
	first := c.DownloadTime(100_000, 0, 50)
	c.SetCongestionWindow(first.CongestionWindow)
	second := c.DownloadTime(100_000-first.BytesDownloaded, first.TimeElapsed, math.Inf(1))
	assert.Greater(t, second.BytesDownloaded, float64(0))
	assert.LessOrEqual(t, first.BytesDownloaded+second.BytesDownloaded, float64(100_000))
}

func TestDownloadTime_DeadlineStopsTransferMidWindow(t *testing.T) {
	c := NewConnection(100, 1_638_400, 0, true)
	unbounded := c.DownloadTime(1_000_000, 0, math.Inf(1))
	bounded := c.DownloadTime(1_000_000, 0, unbounded.TimeElapsed/2)
	assert.Less(t, bounded.BytesDownloaded, unbounded.BytesDownloaded)
	assert.LessOrEqual(t, bounded.TimeElapsed, unbounded.TimeElapsed)
}

func TestMaximumSaturatedConnections_Monotonic(t *testing.T) {
	low := MaximumSaturatedConnections(150, 1_638_400)
	high := MaximumSaturatedConnections(150, 2*1_638_400)
	assert.GreaterOrEqual(t, high, low)
}

func TestDownloadTime_DoesNotMutateConnection(t *testing.T) {
	c := NewConnection(100, 1_638_400, 0, true)
	before := c.CongestionWindow()
	_ = c.DownloadTime(1_000_000, 0, math.Inf(1))
	assert.Equal(t, before, c.CongestionWindow())
}
