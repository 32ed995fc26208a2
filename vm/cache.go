package vm

import (
	"github.com/chazu/consteval/ir"
	"github.com/chazu/consteval/traits"
)

// CacheStats counts selection cache lookups.
type CacheStats struct {
	Hits   uint64
	Misses uint64
}

// selectionCache memoizes successful fulfillments. Keys are built from
// the region-erased parameter environment and trait reference, so two
// queries that differ only in lifetimes share an entry. Failures are not
// cached.
type selectionCache struct {
	entries map[string]*traits.Selection[traits.Resolved]
	stats   CacheStats
}

func newSelectionCache() *selectionCache {
	return &selectionCache{entries: make(map[string]*traits.Selection[traits.Resolved])}
}

func cacheKey(env ir.ParamEnv, tr ir.TraitRef) string {
	return ir.EraseRegionsParamEnv(env).String() + " |- " + ir.EraseRegionsTraitRef(tr).String()
}

func (c *selectionCache) lookup(env ir.ParamEnv, tr ir.TraitRef) (*traits.Selection[traits.Resolved], bool) {
	sel, ok := c.entries[cacheKey(env, tr)]
	if ok {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	return sel, ok
}

func (c *selectionCache) store(env ir.ParamEnv, tr ir.TraitRef, sel *traits.Selection[traits.Resolved]) {
	c.entries[cacheKey(env, tr)] = sel
}
