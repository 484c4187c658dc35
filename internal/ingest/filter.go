package ingest

import (
	"fmt"

	"arbbot/internal/config"
	"arbbot/pkg/types"
)

// PoolFilter selects which pools' market updates continue downstream to the
// translator, grounded on original_source's PoolFilter enum (filter.rs).
type PoolFilter struct {
	mode       string
	token      types.Asset
	tokenPairs []types.AssetPair
}

// NewPoolFilter builds a PoolFilter from the ingest-side filter config.
func NewPoolFilter(cfg config.FilterConfig) (PoolFilter, error) {
	switch cfg.Mode {
	case "all", "":
		return PoolFilter{mode: "all"}, nil
	case "token":
		if cfg.Token == "" {
			return PoolFilter{}, fmt.Errorf("filters.mode=token requires filters.token")
		}
		return PoolFilter{mode: "token", token: types.Asset(cfg.Token)}, nil
	case "token_pairs":
		if len(cfg.TokenPairs) == 0 {
			return PoolFilter{}, fmt.Errorf("filters.mode=token_pairs requires at least one entry in filters.token_pairs")
		}
		pairs := make([]types.AssetPair, 0, len(cfg.TokenPairs))
		for _, p := range cfg.TokenPairs {
			pairs = append(pairs, types.AssetPair{Base: types.Asset(p[0]), Quote: types.Asset(p[1])})
		}
		return PoolFilter{mode: "token_pairs", tokenPairs: pairs}, nil
	default:
		return PoolFilter{}, fmt.Errorf("unknown filters.mode %q", cfg.Mode)
	}
}

// Matches reports whether pair passes this filter.
func (f PoolFilter) Matches(pair types.TokenPair) bool {
	switch f.mode {
	case "all":
		return true
	case "token":
		return pair.Token0 == f.token || pair.Token1 == f.token
	case "token_pairs":
		for _, p := range f.tokenPairs {
			if (p.Base == pair.Token0 && p.Quote == pair.Token1) ||
				(p.Base == pair.Token1 && p.Quote == pair.Token0) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// FilterStep drops market updates whose pool does not match the configured
// PoolFilter (spec.md §4.C step 3).
type FilterStep struct {
	filter PoolFilter
}

// NewFilterStep builds a FilterStep from an already-constructed PoolFilter.
func NewFilterStep(filter PoolFilter) *FilterStep {
	return &FilterStep{filter: filter}
}

// Filter returns only the updates whose token pair matches the filter,
// preserving order.
func (s *FilterStep) Filter(updates []types.MarketUpdate) []types.MarketUpdate {
	out := make([]types.MarketUpdate, 0, len(updates))
	for _, u := range updates {
		if s.filter.Matches(u.TokenPair) {
			out = append(out, u)
		}
	}
	return out
}
