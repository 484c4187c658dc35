package downstream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"arbbot/internal/config"
	"arbbot/internal/errs"
	"arbbot/internal/rpc"
	"arbbot/pkg/types"
)

// Oracle prices one asset (spec.md §6 "price(asset) → Decimal"). Synchronous
// by contract; a miss must surface as errs.ErrOracleMiss so the caller can
// drop the affected opportunity rather than treat the price as zero.
type Oracle interface {
	Price(ctx context.Context, asset types.Asset) (types.Quantity, error)
}

type priceEntry struct {
	price types.Quantity
	at    time.Time
}

// CachedOracle prices assets via a REST endpoint and caches each result for
// CacheTTL, matching the teacher's REST-client-with-retry pattern
// (internal/exchange/client.go) rather than hitting the network on every
// call — gas-cost conversion runs on the hot per-cycle path.
type CachedOracle struct {
	cfg    config.OracleConfig
	client *rpc.Client
	log    *slog.Logger

	mu    sync.Mutex
	cache map[types.Asset]priceEntry
}

// NewCachedOracle builds a CachedOracle against the configured REST
// endpoint. cfg.Endpoint must be set; callers that have no price feed
// configured should pass a nil *CachedOracle and let conversions that need
// it fail with errs.ErrOracleMiss instead.
func NewCachedOracle(cfg config.OracleConfig, log *slog.Logger) (*CachedOracle, error) {
	if log == nil {
		log = slog.Default()
	}
	client, err := rpc.NewClient(rpc.Config{Timeout: cfg.Timeout, APIKey: cfg.APIKey}, log)
	if err != nil {
		return nil, fmt.Errorf("oracle: %w", err)
	}
	return &CachedOracle{
		cfg:    cfg,
		client: client,
		log:    log.With("component", "oracle"),
		cache:  make(map[types.Asset]priceEntry),
	}, nil
}

type priceResponse struct {
	Price float64 `json:"price"`
}

// Price returns the asset's USD price, serving a cached value when it is
// younger than CacheTTL.
func (o *CachedOracle) Price(ctx context.Context, asset types.Asset) (types.Quantity, error) {
	o.mu.Lock()
	if entry, ok := o.cache[asset]; ok && time.Since(entry.at) < o.cfg.CacheTTL {
		o.mu.Unlock()
		return entry.price, nil
	}
	o.mu.Unlock()

	var result priceResponse
	resp, err := o.client.GetJSON(ctx, o.cfg.Endpoint, map[string]string{"asset": string(asset)}, &result)
	if err != nil {
		return types.Zero, fmt.Errorf("oracle price %s: %w", asset, errs.ErrOracleMiss)
	}
	if resp.IsError() {
		o.log.Warn("oracle request returned an error status", "asset", asset, "status", resp.StatusCode())
		return types.Zero, fmt.Errorf("oracle price %s: %w", asset, errs.ErrOracleMiss)
	}

	price := types.QuantityFromFloat(result.Price)
	o.mu.Lock()
	o.cache[asset] = priceEntry{price: price, at: time.Now()}
	o.mu.Unlock()
	return price, nil
}

// PriceInAsset adapts Oracle's single-asset Price into the detector's
// base/quote conversion shape (detector.Oracle): the value of one unit of
// base expressed in quote is the ratio of their USD prices.
func (o *CachedOracle) PriceInAsset(ctx context.Context, base, quote types.Asset) (float64, error) {
	basePrice, err := o.Price(ctx, base)
	if err != nil {
		return 0, err
	}
	quotePrice, err := o.Price(ctx, quote)
	if err != nil {
		return 0, err
	}
	if quotePrice.IsZero() {
		return 0, fmt.Errorf("oracle price of %s is zero: %w", quote, errs.ErrOracleMiss)
	}
	baseF, _ := basePrice.Float64()
	quoteF, _ := quotePrice.Float64()
	return baseF / quoteF, nil
}
