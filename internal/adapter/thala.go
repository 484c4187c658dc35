package adapter

// ThalaAdapter decodes Thala DEX events. original_source notes its logic
// "is assumed identical to Hyperion's for now" (dex-adapters/src/lib.rs) —
// carried forward unchanged here.
type ThalaAdapter struct {
	*snapshotSwapAdapter
}

// NewThalaAdapter builds a Thala adapter with its own pool cache.
func NewThalaAdapter() *ThalaAdapter {
	return &ThalaAdapter{
		snapshotSwapAdapter: newSnapshotSwapAdapter(
			"thala",
			[]string{"PoolSnapshot"},
			[]string{"SwapEvent", "SwapAfterEvent"},
		),
	}
}
