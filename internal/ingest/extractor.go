// Package ingest implements the transaction-stream processing pipeline of
// spec.md §4.C: pulling relevant DEX events out of raw transactions and
// filtering the resulting market updates down to the configured pools.
//
// Grounded on original_source/crates/market-data-ingestor/src/steps/
// event_extractor.rs and filter.rs (Rust), ported to the teacher's
// step-struct-with-logger idiom.
package ingest

import (
	"encoding/json"
	"log/slog"

	"arbbot/internal/config"
)

// RawEvent is one on-chain event as it arrives from the transaction stream,
// before any DEX adapter has decoded its payload.
type RawEvent struct {
	TypeStr        string
	AccountAddress string
	Data           json.RawMessage
}

// Transaction is the subset of an indexed transaction the extractor cares
// about: its version (for logging/replay ordering) and its emitted events.
// Only user transactions carry events worth inspecting; anything else
// (genesis, block metadata, state checkpoint) yields no relevant events.
type Transaction struct {
	Version uint64
	Events  []RawEvent
}

// dexEventSet is the resolved {pool_snapshot, swap} wire event-type pair for
// one configured DEX, plus its optional pool whitelist.
type dexEventSet struct {
	name       string
	eventTypes map[string]bool // wire type_str -> true
	pools      map[string]bool // empty means "no filter, all pools pass"
}

// EventExtractorStep filters transactions down to the events relevant to the
// configured DEXes (spec.md §4.C step 1).
type EventExtractorStep struct {
	log  *slog.Logger
	dexes []dexEventSet
}

// NewEventExtractorStep builds an extractor from the ingest-side DEX list.
func NewEventExtractorStep(log *slog.Logger, dexes []config.IngestDexConfig) *EventExtractorStep {
	if log == nil {
		log = slog.Default()
	}
	sets := make([]dexEventSet, 0, len(dexes))
	for _, d := range dexes {
		types := make(map[string]bool, len(d.Events))
		for _, t := range d.Events {
			if t != "" {
				types[t] = true
			}
		}
		var pools map[string]bool
		if len(d.Pools) > 0 {
			pools = make(map[string]bool, len(d.Pools))
			for _, p := range d.Pools {
				pools[p] = true
			}
		}
		sets = append(sets, dexEventSet{name: d.Name, eventTypes: types, pools: pools})
	}
	return &EventExtractorStep{log: log, dexes: sets}
}

// isRelevantEvent reports whether event matches any configured DEX's event
// type list and, if that DEX has a pool whitelist, whether the event's
// account address is on it.
func (s *EventExtractorStep) isRelevantEvent(event RawEvent) (dexName string, ok bool) {
	if event.AccountAddress == "" {
		return "", false
	}
	for _, d := range s.dexes {
		if !d.eventTypes[event.TypeStr] {
			continue
		}
		if len(d.pools) == 0 {
			s.log.Debug("matched event, no pool filter", "event_type", event.TypeStr, "dex", d.name, "pool_address", event.AccountAddress)
			return d.name, true
		}
		if d.pools[event.AccountAddress] {
			s.log.Debug("matched event, pool filter passed", "event_type", event.TypeStr, "dex", d.name, "pool_address", event.AccountAddress)
			return d.name, true
		}
		s.log.Debug("event type matched but pool address did not", "event_type", event.TypeStr, "dex", d.name, "pool_address", event.AccountAddress)
	}
	return "", false
}

// ProcessTransaction returns the subset of tx.Events relevant to a
// configured DEX, in their original order.
func (s *EventExtractorStep) ProcessTransaction(tx Transaction) []RawEvent {
	relevant := make([]RawEvent, 0, len(tx.Events))
	for _, e := range tx.Events {
		if _, ok := s.isRelevantEvent(e); ok {
			relevant = append(relevant, e)
		}
	}
	if len(relevant) == 0 {
		s.log.Debug("no relevant events found in transaction", "version", tx.Version)
	} else {
		s.log.Info("found relevant events", "version", tx.Version, "event_count", len(relevant))
	}
	return relevant
}

// MatchedEvent pairs a relevant RawEvent with the DEX name that matched it,
// so a caller can route it to that DEX's adapter for decoding.
type MatchedEvent struct {
	DexName string
	Event   RawEvent
}

// ProcessTransactionMatched is ProcessTransaction plus the matched DEX name
// per event, for dispatch to internal/adapter (spec.md §4.C step 2's
// handoff to Component B).
func (s *EventExtractorStep) ProcessTransactionMatched(tx Transaction) []MatchedEvent {
	matched := make([]MatchedEvent, 0, len(tx.Events))
	for _, e := range tx.Events {
		if dexName, ok := s.isRelevantEvent(e); ok {
			matched = append(matched, MatchedEvent{DexName: dexName, Event: e})
		}
	}
	return matched
}
