// Package tcpmodel implements the per-connection transfer-time arithmetic
// used to predict how long a simulated download takes on a warm or cold,
// plaintext or TLS, TCP connection: handshake cost, TLS False Start,
// slow-start congestion-window growth, and throughput sharing.
//
// The model is deliberately total and side-effect free: every query is a
// pure function of the connection's current state and the caller's
// arguments. Callers decide whether to commit a query's resulting
// congestion window back onto the connection.
package tcpmodel

import "math"

const (
	// InitialCongestionWindow is the number of TCP segments a fresh
	// connection may send before waiting for an acknowledgment.
	InitialCongestionWindow = 10
	// SegmentSize is the assumed size, in bytes, of a single TCP segment.
	SegmentSize = 1460
)

// Connection holds the simulated state of one reusable TCP transport,
// identified externally by a connection ID opaque to this package.
type Connection struct {
	rtt              float64 // round-trip time, ms
	throughput       float64 // currently available throughput, bits/sec
	serverResponse   float64 // ms, TTFB contribution before the first byte
	ssl              bool
	warmed           bool
	congestionWindow float64 // segments
}

// NewConnection creates a connection in its initial cold (unwarmed) state,
// with the congestion window set to InitialCongestionWindow.
func NewConnection(rtt, throughput, serverResponseTime float64, ssl bool) *Connection {
	return &Connection{
		rtt:              rtt,
		throughput:       throughput,
		serverResponse:   serverResponseTime,
		ssl:              ssl,
		congestionWindow: InitialCongestionWindow,
	}
}

// RTT returns the connection's configured round-trip time in ms.
func (c *Connection) RTT() float64 { return c.rtt }

// Throughput returns the connection's currently available throughput in bits/sec.
func (c *Connection) Throughput() float64 { return c.throughput }

// Warmed reports whether a transfer has already completed on this connection.
func (c *Connection) Warmed() bool { return c.warmed }

// CongestionWindow returns the current congestion window in segments.
func (c *Connection) CongestionWindow() float64 { return c.congestionWindow }

// SetThroughput updates the throughput share available to this connection.
// Throughput must never be negative; the scheduler is responsible for never
// partitioning a negative or zero share across active connections.
func (c *Connection) SetThroughput(bitsPerSecond float64) {
	c.throughput = bitsPerSecond
}

// SetCongestionWindow commits a congestion window computed by a prior
// DownloadTime query back onto the connection.
func (c *Connection) SetCongestionWindow(segments float64) {
	if segments < 1 {
		segments = 1
	}
	c.congestionWindow = segments
}

// SetWarmed marks the connection as having completed at least one transfer.
// Warmed is monotonic: once true, it is never reset to false.
func (c *Connection) SetWarmed(warmed bool) {
	c.warmed = c.warmed || warmed
}

// MaximumCongestionWindow returns the bandwidth-delay product, in segments,
// that bounds how large the congestion window may grow given the
// connection's current throughput and RTT.
func (c *Connection) MaximumCongestionWindow() float64 {
	return maximumCongestionWindow(c.throughput, c.rtt)
}

func maximumCongestionWindow(throughput, rtt float64) float64 {
	return math.Floor((throughput / 8) * (rtt / 1000) / SegmentSize)
}

// MaximumSaturatedConnections returns the number of connections that can
// each carry at least one segment per RTT given a total throughput budget —
// the minimum per-connection bandwidth for TCP to make forward progress. It
// is used once, at simulation setup, to clamp the configured concurrency
// limit; it is not recomputed as throughput is later rebalanced downward.
func MaximumSaturatedConnections(rtt, throughput float64) int {
	bitsPerRoundTrip := (1000 / rtt) * SegmentSize * 8
	if bitsPerRoundTrip <= 0 {
		return 0
	}
	return int(math.Floor(throughput / bitsPerRoundTrip))
}

// DownloadResult is the outcome of a DownloadTime query: how much progress
// was made, how much simulated time it took, and the congestion window the
// transfer ended at (the caller decides whether to commit it).
type DownloadResult struct {
	RoundTrips       int
	TimeElapsed      float64 // ms
	BytesDownloaded  float64
	CongestionWindow float64 // segments
}

// handshakeCost returns the ms cost of establishing (or re-using) the
// connection before the first request byte can be sent.
func (c *Connection) handshakeCost() float64 {
	oneWay := c.rtt / 2
	if !c.warmed {
		cost := 1.5 * c.rtt // 3 x oneWay: SYN, SYN-ACK, ACK+request
		if c.ssl {
			cost += c.rtt // ClientHello/ServerHello, TLS False Start saves one RTT
		}
		return cost
	}
	return oneWay
}

// timeToFirstByte returns the full handshake-to-first-byte latency for a
// fresh transfer on this connection.
func (c *Connection) timeToFirstByte() float64 {
	oneWay := c.rtt / 2
	return c.handshakeCost() + c.serverResponse + oneWay
}

// DownloadTime computes how long it takes to move bytesToDownload further
// bytes on this connection, given that timeAlreadyElapsed ms of TTFB have
// already been charged to this logical transfer in prior partial queries,
// and stopping early if maximumTimeToElapse (a deadline measured from the
// start of this query, residual TTFB included) is finite and exceeded.
//
// DownloadTime does not mutate the connection. The caller commits the
// returned congestion window via SetCongestionWindow when appropriate.
func (c *Connection) DownloadTime(bytesToDownload, timeAlreadyElapsed, maximumTimeToElapse float64) DownloadResult {
	twoWay := c.rtt
	ttfb := c.timeToFirstByte()
	residualTTFB := math.Max(ttfb-timeAlreadyElapsed, 0)

	cwnd := c.congestionWindow
	maxCwnd := c.MaximumCongestionWindow()

	var bytesRemaining = bytesToDownload
	var roundTrips int
	var downloadElapsed float64

	if residualTTFB > 0 {
		// First step of this transfer: the initial window rides free on the
		// handshake, and its round trips are the handshake's own.
		bytesRemaining -= cwnd * SegmentSize
		roundTrips = int(math.Ceil(c.handshakeCost() / twoWay))
	}

	deadline := math.Inf(1)
	if !math.IsInf(maximumTimeToElapse, 1) {
		deadline = maximumTimeToElapse - residualTTFB
	}

	for bytesRemaining > 0 && downloadElapsed <= deadline {
		downloadElapsed += twoWay
		cwnd = math.Max(math.Min(maxCwnd, cwnd*2), 1)
		bytesRemaining -= cwnd * SegmentSize
		roundTrips++
	}

	bytesDownloaded := bytesToDownload - bytesRemaining
	if bytesDownloaded > bytesToDownload {
		bytesDownloaded = bytesToDownload
	}
	if bytesDownloaded < 0 {
		bytesDownloaded = 0
	}

	return DownloadResult{
		RoundTrips:       roundTrips,
		TimeElapsed:      residualTTFB + downloadElapsed,
		BytesDownloaded:  bytesDownloaded,
		CongestionWindow: cwnd,
	}
}
