// Package errs defines the sentinel error kinds enumerated in spec.md §7,
// so callers can branch with errors.Is instead of string matching.
package errs

import "errors"

var (
	// ErrCacheMiss identifies a Swap/SwapAfter event for a pool with no
	// prior PoolSnapshot. adapter.CacheMissError wraps it; ParseEvent itself
	// drops such events without an error. Non-fatal: a later snapshot heals it.
	ErrCacheMiss = errors.New("pool state cache miss")

	// ErrUnknownExchange is returned when a MarketUpdate's dex_name does not
	// map to a configured Exchange. The update is dropped, not fatal.
	ErrUnknownExchange = errors.New("unknown exchange")

	// ErrQuoteRejected covers all quote-time rejections: wrong input asset,
	// non-positive output, liquidity exhaustion, invalid fee configuration.
	ErrQuoteRejected = errors.New("quote rejected")

	// ErrCycleNotClosed is returned when predecessor backtracking fails to
	// revisit a vertex within |V| steps.
	ErrCycleNotClosed = errors.New("cycle reconstruction did not close")

	// ErrSlippageExceeded is returned when a re-simulated cycle diverges
	// from spot rate by more than the configured slippage cap.
	ErrSlippageExceeded = errors.New("slippage cap exceeded")

	// ErrOracleMiss is returned when the oracle has no price for an asset
	// needed to convert gas cost into the cycle's starting asset.
	ErrOracleMiss = errors.New("oracle price miss")

	// ErrGasEstimationFailed is returned when both the RPC simulate call and
	// the linear fallback fail to produce a gas estimate.
	ErrGasEstimationFailed = errors.New("gas estimation failed")
)
