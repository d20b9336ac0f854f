// Package catalog projects the resolved registry into the browsable
// Category→Group→Animation view of one variant and owns the single cached
// copy of it.
package catalog

import (
	"fmt"
	"time"

	apperrors "github.com/conneroisu/motiondeck/internal/errors"
	"github.com/conneroisu/motiondeck/internal/registry"
	"github.com/conneroisu/motiondeck/internal/types"
)

// Group is one navigable group of animations.
type Group struct {
	ID         string               `json:"id" yaml:"id"`
	Title      string               `json:"title" yaml:"title"`
	TechHint   string               `json:"techHint,omitempty" yaml:"tech_hint,omitempty"`
	Variant    types.Variant        `json:"variant" yaml:"variant"`
	CategoryID string               `json:"categoryId" yaml:"category_id"`
	Animations []types.AnimationRef `json:"animations" yaml:"animations"`
}

// Category is a titled list of groups.
type Category struct {
	ID     string  `json:"id" yaml:"id"`
	Title  string  `json:"title" yaml:"title"`
	Groups []Group `json:"groups" yaml:"groups"`
}

// Catalog is an immutable view of one variant. It is never patched in
// place; AddExtra swaps in a modified clone.
type Catalog struct {
	Variant    types.Variant `json:"variant" yaml:"variant"`
	Generation uint64        `json:"generation" yaml:"generation"`
	BuiltAt    time.Time     `json:"builtAt" yaml:"built_at"`
	Categories []Category    `json:"categories" yaml:"categories"`

	units map[string]types.UnitFactory
}

// Build projects variant out of table. Only the unit factories of variant
// are referenced and none is invoked.
func Build(table *registry.Table, variant types.Variant) (*Catalog, error) {
	if table == nil {
		return nil, apperrors.NewCatalogError(apperrors.ErrCodeCatalogLoad, "no registry table", nil)
	}
	if !variant.Valid() {
		return nil, apperrors.NewValidationError(apperrors.ErrCodeValidationFailed,
			fmt.Sprintf("unknown variant %q", variant))
	}

	cat := &Catalog{
		Variant: variant,
		BuiltAt: time.Now(),
		units:   make(map[string]types.UnitFactory),
	}
	for _, cd := range table.Categories() {
		category := Category{ID: cd.ID, Title: cd.Title}
		for _, gd := range cd.Groups {
			if gd.Variant != variant {
				continue
			}
			group := Group{
				ID:         gd.ID,
				Title:      gd.Title,
				TechHint:   gd.TechHint,
				Variant:    gd.Variant,
				CategoryID: cd.ID,
				Animations: make([]types.AnimationRef, 0, len(gd.Animations)),
			}
			for _, id := range gd.Animations {
				entry, ok := table.Entry(id)
				if !ok {
					continue
				}
				md, hasMeta := entry.Metadata[variant]
				factory, hasUnit := entry.Components[variant]
				if !hasMeta || !hasUnit {
					continue
				}
				group.Animations = append(group.Animations, types.RefFromMetadata(md, cd.ID, gd.ID))
				cat.units[id] = factory
			}
			category.Groups = append(category.Groups, group)
		}
		if len(category.Groups) > 0 {
			cat.Categories = append(cat.Categories, category)
		}
	}
	return cat, nil
}

// Groups returns every group in catalog order.
func (c *Catalog) Groups() []Group {
	if c == nil {
		return nil
	}
	var out []Group
	for _, cat := range c.Categories {
		out = append(out, cat.Groups...)
	}
	return out
}

// GroupIDs returns every group id in catalog order.
func (c *Catalog) GroupIDs() []string {
	if c == nil {
		return nil
	}
	var out []string
	for _, cat := range c.Categories {
		for _, g := range cat.Groups {
			out = append(out, g.ID)
		}
	}
	return out
}

// Group returns the group with id.
func (c *Catalog) Group(id string) (Group, bool) {
	if c == nil {
		return Group{}, false
	}
	for _, cat := range c.Categories {
		for _, g := range cat.Groups {
			if g.ID == id {
				return g, true
			}
		}
	}
	return Group{}, false
}

// Category returns the category with id.
func (c *Catalog) Category(id string) (Category, bool) {
	if c == nil {
		return Category{}, false
	}
	for _, cat := range c.Categories {
		if cat.ID == id {
			return cat, true
		}
	}
	return Category{}, false
}

// Animation returns the first placement of the animation with id.
func (c *Catalog) Animation(id string) (types.AnimationRef, bool) {
	if c == nil {
		return types.AnimationRef{}, false
	}
	for _, cat := range c.Categories {
		for _, g := range cat.Groups {
			for _, a := range g.Animations {
				if a.ID == id {
					return a, true
				}
			}
		}
	}
	return types.AnimationRef{}, false
}

// Unit returns the unit factory for an animation of this catalog's variant.
// Its signature matches lifecycle.UnitLookup.
func (c *Catalog) Unit(id string) (types.UnitFactory, bool) {
	if c == nil {
		return nil, false
	}
	f, ok := c.units[id]
	return f, ok
}

// Len returns the number of animation placements.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, cat := range c.Categories {
		for _, g := range cat.Groups {
			n += len(g.Animations)
		}
	}
	return n
}

// clone deep-copies the slices a mutation could touch.
func (c *Catalog) clone() *Catalog {
	next := &Catalog{
		Variant:    c.Variant,
		Generation: c.Generation,
		BuiltAt:    c.BuiltAt,
		Categories: make([]Category, len(c.Categories)),
		units:      make(map[string]types.UnitFactory, len(c.units)),
	}
	for i, cat := range c.Categories {
		groups := make([]Group, len(cat.Groups))
		for j, g := range cat.Groups {
			g.Animations = append([]types.AnimationRef(nil), g.Animations...)
			groups[j] = g
		}
		cat.Groups = groups
		next.Categories[i] = cat
	}
	for id, f := range c.units {
		next.units[id] = f
	}
	return next
}

// Extra is an animation injected at runtime into the cached catalog.
type Extra struct {
	CategoryID string
	GroupID    string
	// Variant defaults to the variant of the cached catalog.
	Variant  types.Variant
	Metadata types.Metadata
	Factory  types.UnitFactory
}

func (e Extra) validate() error {
	switch {
	case e.CategoryID == "":
		return apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "extra requires a category id")
	case e.GroupID == "":
		return apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "extra requires a group id")
	case e.Metadata.ID == "":
		return apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "extra requires a metadata id")
	case e.Factory == nil:
		return apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "extra requires a unit factory")
	}
	return nil
}

// withExtra returns a clone of c with e appended at its group.
func (c *Catalog) withExtra(e Extra) (*Catalog, types.AnimationRef, error) {
	if _, taken := c.units[e.Metadata.ID]; taken {
		err := apperrors.NewValidationError(apperrors.ErrCodeDuplicateAnimation,
			fmt.Sprintf("animation %s already registered", e.Metadata.ID))
		if ref, ok := c.Animation(e.Metadata.ID); ok {
			err = err.WithContext("group", ref.GroupID)
		}
		return nil, types.AnimationRef{}, err
	}
	next := c.clone()
	for i := range next.Categories {
		cat := &next.Categories[i]
		if cat.ID != e.CategoryID {
			continue
		}
		for j := range cat.Groups {
			g := &cat.Groups[j]
			if g.ID != e.GroupID {
				continue
			}
			ref := types.RefFromMetadata(e.Metadata, cat.ID, g.ID)
			g.Animations = append(g.Animations, ref)
			next.units[ref.ID] = e.Factory
			return next, ref, nil
		}
		return nil, types.AnimationRef{}, apperrors.ErrGroupNotFound(e.GroupID).
			WithContext("category", e.CategoryID)
	}
	return nil, types.AnimationRef{}, apperrors.ErrCategoryNotFound(e.CategoryID)
}
