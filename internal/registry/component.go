// Package registry resolves the hand-authored demo declarations into one
// validated, addressable table.
//
// Declarations arrive from two sides: metadata and the category/group layout
// come from the manifest, renderable unit factories come from the demo
// packages. Resolve cross-checks both sides per variant and fails with a
// *Report naming every offending id when they disagree.
package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/conneroisu/motiondeck/internal/logging"
	"github.com/conneroisu/motiondeck/internal/types"
)

// GroupDecl declares one group within a category.
type GroupDecl struct {
	ID       string
	Title    string
	TechHint string
	// Variant is the family of the group. When empty it is derived from the
	// id suffix.
	Variant types.Variant
	// Animations are entry ids in display order.
	Animations []string
}

// CategoryDecl declares one category and its groups in display order.
type CategoryDecl struct {
	ID     string
	Title  string
	Groups []GroupDecl
}

// MetadataDecl declares the metadata one implementation module exports.
type MetadataDecl struct {
	// Key is the id the metadata is declared under; defaults to Metadata.ID.
	Key      string
	Variant  types.Variant
	Metadata types.Metadata
}

// ComponentDecl declares the renderable unit one implementation module exports.
type ComponentDecl struct {
	ID      string
	Variant types.Variant
	Factory types.UnitFactory
}

// Declarations is the full input of Resolve.
type Declarations struct {
	Categories []CategoryDecl
	Metadata   []MetadataDecl
	Components []ComponentDecl
}

// Options controls Resolve.
type Options struct {
	// Strict upgrades undocumented components from warnings to failures.
	Strict bool
	Logger logging.Logger
}

// Entry is one resolved id with its per-variant metadata and unit factories.
type Entry struct {
	ID         string
	Metadata   map[types.Variant]types.Metadata
	Components map[types.Variant]types.UnitFactory
}

// Variants returns the variants that have both metadata and a unit.
func (e *Entry) Variants() []types.Variant {
	var out []types.Variant
	for _, v := range types.Variants {
		_, hasMeta := e.Metadata[v]
		_, hasUnit := e.Components[v]
		if hasMeta && hasUnit {
			out = append(out, v)
		}
	}
	return out
}

// Table is the immutable result of Resolve.
type Table struct {
	entries    map[string]*Entry
	order      []string
	categories []CategoryDecl
	warnings   []string
}

// Entry returns the entry for id.
func (t *Table) Entry(id string) (*Entry, bool) {
	e, ok := t.entries[id]
	return e, ok
}

// IDs returns all entry ids sorted.
func (t *Table) IDs() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Categories returns the declared categories in order.
func (t *Table) Categories() []CategoryDecl {
	out := make([]CategoryDecl, len(t.categories))
	copy(out, t.categories)
	return out
}

// Warnings returns the undocumented components tolerated in non-strict
// mode as "variant:id".
func (t *Table) Warnings() []string {
	out := make([]string, len(t.warnings))
	copy(out, t.warnings)
	return out
}

// Resolve validates declarations and builds the table. It never calls a unit
// factory.
func Resolve(decls Declarations, opts Options) (*Table, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	report := newReport(opts.Strict)

	metadata := indexMetadata(decls.Metadata, report)
	components := indexComponents(decls.Components, report)

	for _, v := range types.Variants {
		for id := range metadata[v] {
			if _, ok := components[v][id]; !ok {
				report.Orphans[v] = append(report.Orphans[v], id)
			}
		}
		for id := range components[v] {
			if _, ok := metadata[v][id]; !ok {
				report.Undocumented[v] = append(report.Undocumented[v], id)
			}
		}
	}

	categories := checkLayout(decls.Categories, metadata, report)
	report.sort()

	if report.Fatal() {
		return nil, report
	}

	warnings := report.UndocumentedIDs()
	if len(warnings) > 0 {
		logger.Warn(context.Background(), nil, "Undocumented components are not part of the catalog",
			"ids", warnings, "count", len(warnings))
	}

	entries := make(map[string]*Entry)
	get := func(id string) *Entry {
		e, ok := entries[id]
		if !ok {
			e = &Entry{
				ID:         id,
				Metadata:   make(map[types.Variant]types.Metadata),
				Components: make(map[types.Variant]types.UnitFactory),
			}
			entries[id] = e
		}
		return e
	}
	for v, byID := range metadata {
		for id, md := range byID {
			md.Tags = types.NormalizeTags(md.Tags)
			get(id).Metadata[v] = md
		}
	}
	for v, byID := range components {
		for id, factory := range byID {
			get(id).Components[v] = factory
		}
	}

	order := make([]string, 0, len(entries))
	for id := range entries {
		order = append(order, id)
	}
	sort.Strings(order)

	return &Table{
		entries:    entries,
		order:      order,
		categories: categories,
		warnings:   warnings,
	}, nil
}

func indexMetadata(decls []MetadataDecl, report *Report) map[types.Variant]map[string]types.Metadata {
	out := make(map[types.Variant]map[string]types.Metadata)
	for _, d := range decls {
		key := d.Key
		if key == "" {
			key = d.Metadata.ID
		}
		if !d.Variant.Valid() {
			report.Structural = append(report.Structural, fmt.Sprintf("metadata %q declares unknown variant %q", key, d.Variant))
			continue
		}
		if key == "" {
			report.Structural = append(report.Structural, fmt.Sprintf("%s metadata without id", d.Variant))
			continue
		}
		if d.Metadata.ID != key {
			report.Mismatched = append(report.Mismatched, fmt.Sprintf("%s:%s declares id %q", d.Variant, key, d.Metadata.ID))
			continue
		}
		if out[d.Variant] == nil {
			out[d.Variant] = make(map[string]types.Metadata)
		}
		if _, dup := out[d.Variant][key]; dup {
			report.Duplicates = append(report.Duplicates, fmt.Sprintf("metadata %s:%s", d.Variant, key))
			continue
		}
		out[d.Variant][key] = d.Metadata
	}
	return out
}

func indexComponents(decls []ComponentDecl, report *Report) map[types.Variant]map[string]types.UnitFactory {
	out := make(map[types.Variant]map[string]types.UnitFactory)
	for _, d := range decls {
		if !d.Variant.Valid() {
			report.Structural = append(report.Structural, fmt.Sprintf("component %q declares unknown variant %q", d.ID, d.Variant))
			continue
		}
		if d.ID == "" {
			report.Structural = append(report.Structural, fmt.Sprintf("%s component without id", d.Variant))
			continue
		}
		if d.Factory == nil {
			report.Structural = append(report.Structural, fmt.Sprintf("component %s:%s has no factory", d.Variant, d.ID))
			continue
		}
		if out[d.Variant] == nil {
			out[d.Variant] = make(map[string]types.UnitFactory)
		}
		if _, dup := out[d.Variant][d.ID]; dup {
			report.Duplicates = append(report.Duplicates, fmt.Sprintf("component %s:%s", d.Variant, d.ID))
			continue
		}
		out[d.Variant][d.ID] = d.Factory
	}
	return out
}

// checkLayout validates categories and groups and returns a copy with every
// group's variant filled in.
func checkLayout(decls []CategoryDecl, metadata map[types.Variant]map[string]types.Metadata, report *Report) []CategoryDecl {
	seenCategory := make(map[string]bool)
	seenGroup := make(map[string]bool)
	out := make([]CategoryDecl, 0, len(decls))

	for _, cat := range decls {
		if cat.ID == "" {
			report.Structural = append(report.Structural, "category without id")
			continue
		}
		if seenCategory[cat.ID] {
			report.Duplicates = append(report.Duplicates, "category "+cat.ID)
			continue
		}
		seenCategory[cat.ID] = true

		resolved := CategoryDecl{ID: cat.ID, Title: cat.Title, Groups: make([]GroupDecl, 0, len(cat.Groups))}
		for _, g := range cat.Groups {
			if g.ID == "" {
				report.Structural = append(report.Structural, fmt.Sprintf("group without id in category %s", cat.ID))
				continue
			}
			if seenGroup[g.ID] {
				report.Duplicates = append(report.Duplicates, "group "+g.ID)
				continue
			}
			seenGroup[g.ID] = true

			variant, ok := groupVariant(g)
			if !ok {
				report.Structural = append(report.Structural, fmt.Sprintf("group %s has no variant family", g.ID))
				continue
			}

			seenInGroup := make(map[string]bool, len(g.Animations))
			for _, id := range g.Animations {
				if seenInGroup[id] {
					report.Duplicates = append(report.Duplicates, fmt.Sprintf("group %s lists %s twice", g.ID, id))
					continue
				}
				seenInGroup[id] = true
				if _, ok := metadata[variant][id]; !ok {
					report.Dangling = append(report.Dangling, fmt.Sprintf("%s -> %s:%s", g.ID, variant, id))
				}
			}

			g.Variant = variant
			g.Animations = append([]string(nil), g.Animations...)
			resolved.Groups = append(resolved.Groups, g)
		}
		out = append(out, resolved)
	}
	return out
}

func groupVariant(g GroupDecl) (types.Variant, bool) {
	if g.Variant != "" {
		return g.Variant, g.Variant.Valid()
	}
	return types.VariantOfGroup(g.ID)
}
