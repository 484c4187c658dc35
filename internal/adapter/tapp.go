package adapter

// TappAdapter decodes Tapp DEX events. original_source leaves
// TappAdapter::parse_event as `unimplemented!()` — its wire format was
// never specified in the retained source. SPEC_FULL.md §12.4 gives it the
// same snapshot/swap/cache-miss semantics as Hyperion and Thala rather than
// leaving a dead stub in a complete implementation.
type TappAdapter struct {
	*snapshotSwapAdapter
}

// NewTappAdapter builds a Tapp adapter with its own pool cache.
func NewTappAdapter() *TappAdapter {
	return &TappAdapter{
		snapshotSwapAdapter: newSnapshotSwapAdapter(
			"tapp",
			[]string{"PoolSnapshot"},
			[]string{"SwapEvent", "SwapAfterEvent"},
		),
	}
}
