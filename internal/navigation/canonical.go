// Package navigation maps any requested group id to exactly one existing
// group of the current catalog.
package navigation

import "github.com/conneroisu/motiondeck/internal/types"

// Result is the outcome of Canonicalize.
type Result struct {
	ResolvedID     string `json:"resolvedId"`
	ShouldRedirect bool   `json:"shouldRedirect"`
}

// Canonicalize resolves requested against groups, which must be in catalog
// order. It is pure:
//
//  1. an exact match resolves to itself without a redirect;
//  2. a non-empty id without a variant suffix tries id-motion, then id-css;
//  3. anything else falls back to the first group.
//
// Every redirecting result names an existing group, so canonicalizing a
// result again never redirects. With no groups at all the result is empty
// and never redirects.
func Canonicalize(requested string, groups []string) Result {
	if len(groups) == 0 {
		return Result{}
	}

	exists := func(id string) bool {
		for _, g := range groups {
			if g == id {
				return true
			}
		}
		return false
	}

	if exists(requested) {
		return Result{ResolvedID: requested}
	}

	if _, suffixed := types.VariantOfGroup(requested); requested != "" && !suffixed {
		for _, v := range types.Variants {
			if candidate := requested + v.Suffix(); exists(candidate) {
				return Result{ResolvedID: candidate, ShouldRedirect: true}
			}
		}
	}

	return Result{ResolvedID: groups[0], ShouldRedirect: true}
}
