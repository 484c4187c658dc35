package adapter

// HyperionAdapter decodes Hyperion DEX events (spec.md §4.B), grounded on
// original_source/crates/dex-adapters/src/lib.rs's HyperionAdapter.
type HyperionAdapter struct {
	*snapshotSwapAdapter
}

// NewHyperionAdapter builds a Hyperion adapter with its own pool cache.
func NewHyperionAdapter() *HyperionAdapter {
	return &HyperionAdapter{
		snapshotSwapAdapter: newSnapshotSwapAdapter(
			"hyperion",
			[]string{"PoolSnapshot"},
			[]string{"SwapEvent", "SwapAfterEvent"},
		),
	}
}
