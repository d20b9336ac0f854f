// Package demos holds the built-in demo units. Each implementation module
// registers exactly one factory per variant under the animation id its
// metadata is declared with in the manifest.
package demos

import (
	"sort"
	"sync"

	"github.com/conneroisu/motiondeck/internal/registry"
	"github.com/conneroisu/motiondeck/internal/types"
)

type key struct {
	id      string
	variant types.Variant
}

var (
	registryMu sync.RWMutex
	factories  = make(map[key]types.UnitFactory)
)

// Register associates an animation id and variant with a unit factory. It
// panics on duplicate registrations.
func Register(id string, variant types.Variant, factory types.UnitFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	k := key{id: id, variant: variant}
	if _, exists := factories[k]; exists {
		panic("demos: duplicate registration for " + variant.String() + ":" + id)
	}
	factories[k] = factory
}

// Lookup fetches a factory by id and variant.
func Lookup(id string, variant types.Variant) (types.UnitFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := factories[key{id: id, variant: variant}]
	return f, ok
}

// Components returns every registered unit as registry declarations, sorted
// by variant then id.
func Components() []registry.ComponentDecl {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]registry.ComponentDecl, 0, len(factories))
	for k, f := range factories {
		out = append(out, registry.ComponentDecl{ID: k.id, Variant: k.variant, Factory: f})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Variant != out[j].Variant {
			return out[i].Variant < out[j].Variant
		}
		return out[i].ID < out[j].ID
	})
	return out
}
