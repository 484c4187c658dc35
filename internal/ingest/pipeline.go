package ingest

import (
	"log/slog"
	"time"

	"arbbot/internal/adapter"
	"arbbot/pkg/types"
)

// Pipeline assembles Component C end to end: extractor match, per-DEX
// adapter decode, pool filter, then wraps the result as the block-aligned
// DetectorMessage sequence internal/service consumes. The transaction
// stream itself (live gRPC feed or file replay) is an external collaborator
// (spec.md §1); Pipeline only turns the blocks it is handed into messages.
type Pipeline struct {
	extractor *EventExtractorStep
	adapters  map[string]adapter.DexAdapter
	filter    *FilterStep
	log       *slog.Logger
}

// NewPipeline wires a Pipeline from its three Component B/C collaborators.
// adapters maps a configured DEX name (IngestDexConfig.Name) to the adapter
// that decodes its events.
func NewPipeline(extractor *EventExtractorStep, adapters map[string]adapter.DexAdapter, filter *FilterStep, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		extractor: extractor,
		adapters:  adapters,
		filter:    filter,
		log:       log.With("component", "ingest-pipeline"),
	}
}

// ProcessBlock decodes every relevant event across txs into MarketUpdates,
// applies the pool filter, and returns the BlockStart, MarketUpdate*,
// BlockEnd sequence for blockNumber.
func (p *Pipeline) ProcessBlock(blockNumber uint64, ts time.Time, txs []Transaction) []types.DetectorMessage {
	msgs := make([]types.DetectorMessage, 0, len(txs)+2)
	msgs = append(msgs, types.NewBlockStart(blockNumber, ts))

	var updates []types.MarketUpdate
	for _, tx := range txs {
		for _, m := range p.extractor.ProcessTransactionMatched(tx) {
			a, ok := p.adapters[m.DexName]
			if !ok {
				p.log.Warn("matched event for dex with no registered adapter", "dex", m.DexName)
				continue
			}
			update, err := a.ParseEvent(adapter.Event{TypeStr: m.Event.TypeStr, Data: m.Event.Data})
			if err != nil {
				p.log.Warn("adapter failed to decode event", "dex", m.DexName, "error", err)
				continue
			}
			if update == nil {
				continue
			}
			updates = append(updates, *update)
		}
	}

	for _, u := range p.filter.Filter(updates) {
		msgs = append(msgs, types.NewMarketUpdateMessage(u))
	}
	msgs = append(msgs, types.NewBlockEnd(blockNumber))
	return msgs
}
