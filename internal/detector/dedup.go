package detector

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"arbbot/pkg/types"
)

// Deduplicator suppresses re-emission of the same opportunity across
// consecutive blocks within a TTL window (spec.md §4.H), grounded on
// deduplicator.rs's OpportunityDeduplicator: a single HashSet of 32-byte
// fingerprints, fully cleared (not selectively pruned) once the window
// elapses.
type Deduplicator struct {
	mu sync.Mutex

	seen       map[[32]byte]struct{}
	lastPruned time.Time
	ttl        time.Duration
}

// NewDeduplicator builds a Deduplicator with the given TTL window.
func NewDeduplicator(ttl time.Duration) *Deduplicator {
	return &Deduplicator{
		seen:       make(map[[32]byte]struct{}),
		lastPruned: time.Now(),
		ttl:        ttl,
	}
}

// quantize renders an input amount to a fixed-precision string so that
// economically-identical probe sizes (e.g. float noise) fingerprint
// identically (spec.md §4.H "quantized input").
func quantize(q types.Quantity) string {
	return q.Decimal.Round(8).String()
}

// Fingerprint computes the domain-separated 32-byte hash identifying an
// opportunity by its path, quantized input, and strategy — never by
// timestamp or block number, so the same cycle seen again next block
// fingerprints identically (spec.md §4.H).
func Fingerprint(opp types.ArbitrageOpportunity) [32]byte {
	input := opp.FingerprintInput(quantize(opp.InputAmount))
	return [32]byte(crypto.Keccak256(input))
}

// IsDuplicate reports whether opp's fingerprint was already seen within the
// current TTL window, recording it if not. The whole seen set is cleared
// once the window has elapsed rather than pruning individual entries
// (deduplicator.rs is_duplicate).
func (d *Deduplicator) IsDuplicate(opp types.ArbitrageOpportunity) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if now.Sub(d.lastPruned) > d.ttl {
		d.seen = make(map[[32]byte]struct{})
		d.lastPruned = now
	}

	fp := Fingerprint(opp)
	if _, ok := d.seen[fp]; ok {
		return true
	}
	d.seen[fp] = struct{}{}
	return false
}

// Filter returns opps with every duplicate (by fingerprint, within the TTL
// window) removed, preserving order.
func (d *Deduplicator) Filter(opps []types.ArbitrageOpportunity) []types.ArbitrageOpportunity {
	out := make([]types.ArbitrageOpportunity, 0, len(opps))
	for _, o := range opps {
		if d.IsDuplicate(o) {
			continue
		}
		o.ID = Fingerprint(o)
		out = append(out, o)
	}
	return out
}
