package registry

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/conneroisu/motiondeck/internal/errors"
	"github.com/conneroisu/motiondeck/internal/types"
)

// Report lists every inconsistency found while resolving declarations.
// A single Resolve run fills in all sections so one pass surfaces everything.
type Report struct {
	// Orphans are metadata ids with no renderable unit for the same variant.
	Orphans map[types.Variant][]string
	// Undocumented are units with no metadata for the same variant.
	Undocumented map[types.Variant][]string
	// Duplicates are ids declared more than once in one namespace.
	Duplicates []string
	// Mismatched are metadata entries whose ID differs from the key they are
	// declared under.
	Mismatched []string
	// Dangling are group references to ids with no metadata for the group's variant.
	Dangling []string
	// Structural covers everything else (unknown variants, nil factories, ...).
	Structural []string
	// Strict upgrades undocumented components to fatal.
	Strict bool
}

func newReport(strict bool) *Report {
	return &Report{
		Orphans:      make(map[types.Variant][]string),
		Undocumented: make(map[types.Variant][]string),
		Strict:       strict,
	}
}

// Fatal reports whether the report blocks catalog availability.
func (r *Report) Fatal() bool {
	if countIDs(r.Orphans) > 0 ||
		len(r.Duplicates) > 0 ||
		len(r.Mismatched) > 0 ||
		len(r.Dangling) > 0 ||
		len(r.Structural) > 0 {
		return true
	}
	return r.Strict && countIDs(r.Undocumented) > 0
}

// Empty reports whether nothing at all was found, warnings included.
func (r *Report) Empty() bool {
	return !r.Fatal() && countIDs(r.Undocumented) == 0
}

// OrphanIDs returns the orphan metadata ids as "variant:id", sorted.
func (r *Report) OrphanIDs() []string {
	return flatten(r.Orphans)
}

// UndocumentedIDs returns the undocumented component ids as "variant:id", sorted.
func (r *Report) UndocumentedIDs() []string {
	return flatten(r.Undocumented)
}

// Error implements the error interface.
func (r *Report) Error() string {
	var sections []string
	if n := countIDs(r.Orphans); n > 0 {
		sections = append(sections, fmt.Sprintf("orphan metadata (%d): %s", n, strings.Join(r.OrphanIDs(), ", ")))
	}
	if n := countIDs(r.Undocumented); n > 0 && r.Strict {
		sections = append(sections, fmt.Sprintf("undocumented components (%d): %s", n, strings.Join(r.UndocumentedIDs(), ", ")))
	}
	if len(r.Duplicates) > 0 {
		sections = append(sections, fmt.Sprintf("duplicate ids (%d): %s", len(r.Duplicates), strings.Join(r.Duplicates, ", ")))
	}
	if len(r.Mismatched) > 0 {
		sections = append(sections, fmt.Sprintf("metadata id mismatch (%d): %s", len(r.Mismatched), strings.Join(r.Mismatched, ", ")))
	}
	if len(r.Dangling) > 0 {
		sections = append(sections, fmt.Sprintf("dangling group references (%d): %s", len(r.Dangling), strings.Join(r.Dangling, ", ")))
	}
	if len(r.Structural) > 0 {
		sections = append(sections, fmt.Sprintf("structural (%d): %s", len(r.Structural), strings.Join(r.Structural, "; ")))
	}
	if len(sections) == 0 {
		return "registry consistent"
	}
	return "registry inconsistent: " + strings.Join(sections, "; ")
}

// Unwrap lets callers match the report with errors.Is(err, errors.ErrRegistryInconsistent).
func (r *Report) Unwrap() error {
	return apperrors.ErrRegistryInconsistent
}

func (r *Report) sort() {
	for _, m := range []map[types.Variant][]string{r.Orphans, r.Undocumented} {
		for v := range m {
			sort.Strings(m[v])
		}
	}
	sort.Strings(r.Duplicates)
	sort.Strings(r.Mismatched)
	sort.Strings(r.Dangling)
}

func countIDs(m map[types.Variant][]string) int {
	n := 0
	for _, ids := range m {
		n += len(ids)
	}
	return n
}

func flatten(m map[types.Variant][]string) []string {
	out := make([]string, 0, countIDs(m))
	for v, ids := range m {
		for _, id := range ids {
			out = append(out, string(v)+":"+id)
		}
	}
	sort.Strings(out)
	return out
}
