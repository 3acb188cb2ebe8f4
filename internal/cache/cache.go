// Package cache memoizes computed quotes keyed by the canonical form of the
// request plus the rate table generation, so a rate reload retires every
// cached quote at once. The engine is cheap enough to run uncached; the cache
// exists so the calculator UI can hammer the same request without recomputing.
package cache

import (
	"encoding/json"
	"fmt"

	"github.com/assetfin/quote-engine/internal/quote"
)

// QuoteCache stores serialized quotes by key.
type QuoteCache interface {
	Get(key string) (string, bool)
	Set(key string, value string) error
}

// Key builds the canonical cache key for a request under a rate table
// generation. Entries written under an earlier generation are never read
// back after a reload.
func Key(generation uint64, req quote.Request) string {
	return fmt.Sprintf("quote:g%d:%s:%s:%.2f:%d:%.2f:%t",
		generation, req.AssetType, req.AssetCondition, req.LoanAmount, req.TermMonths, req.BalloonPercent, req.PrivateSale)
}

// Lookup returns the cached quote for the request, if any.
func Lookup(c QuoteCache, generation uint64, req quote.Request) (quote.Quote, bool) {
	if c == nil {
		return quote.Quote{}, false
	}
	raw, ok := c.Get(Key(generation, req))
	if !ok {
		return quote.Quote{}, false
	}
	var q quote.Quote
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return quote.Quote{}, false
	}
	return q, true
}

// Store caches the quote for the request.
func Store(c QuoteCache, generation uint64, req quote.Request, q quote.Quote) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return c.Set(Key(generation, req), string(raw))
}
