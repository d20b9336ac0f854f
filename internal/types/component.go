// Package types provides common type definitions used throughout motiondeck.
// This package contains shared types to avoid circular dependencies between the
// registry, catalog, lifecycle and demo packages.
package types

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/a-h/templ"
)

// Variant identifies one of the two parallel implementations of a demo
// (the "code mode").
type Variant string

const (
	// VariantMotion is the declarative motion-library implementation.
	VariantMotion Variant = "motion"
	// VariantCSS is the plain-CSS implementation.
	VariantCSS Variant = "css"
)

// Variants lists every known variant in canonical order. Canonicalization
// tries group suffixes in this order.
var Variants = []Variant{VariantMotion, VariantCSS}

// String returns the string representation of the variant.
func (v Variant) String() string {
	return string(v)
}

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	return v == VariantMotion || v == VariantCSS
}

// Suffix returns the group id suffix marking this variant family, e.g. "-motion".
func (v Variant) Suffix() string {
	return "-" + string(v)
}

// ParseVariant parses a variant name case-insensitively.
func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("unknown variant %q (want %q or %q)", s, VariantMotion, VariantCSS)
	}
	return v, nil
}

// VariantOfGroup returns the variant family a group id belongs to by its
// suffix. The second result is false when the id carries no recognized suffix.
func VariantOfGroup(groupID string) (Variant, bool) {
	for _, v := range Variants {
		if strings.HasSuffix(groupID, v.Suffix()) {
			return v, true
		}
	}
	return "", false
}

// Metadata is the documentation contract every demo implementation exports
// once per variant.
type Metadata struct {
	// ID must equal the id of the registry entry that owns it
	ID string `json:"id" yaml:"id"`
	// Title is the human-readable name shown on the card
	Title string `json:"title" yaml:"title"`
	// Description explains what the demo shows
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Tags is a set; NormalizeTags sorts and deduplicates it
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	// DisableReplay hides the replay action and turns Replay into a no-op
	DisableReplay bool `json:"disableReplay,omitempty" yaml:"disable_replay,omitempty"`
}

// NormalizeTags returns the tags as a sorted set with empty entries removed.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// AnimationRef is the catalog-facing projection of a registry entry for the
// active variant.
type AnimationRef struct {
	ID            string   `json:"id" yaml:"id"`
	Title         string   `json:"title" yaml:"title"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
	CategoryID    string   `json:"categoryId" yaml:"category_id"`
	GroupID       string   `json:"groupId" yaml:"group_id"`
	Tags          []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	DisableReplay bool     `json:"disableReplay" yaml:"disable_replay"`
}

// RefFromMetadata projects metadata into an AnimationRef placed at the given
// category and group.
func RefFromMetadata(md Metadata, categoryID, groupID string) AnimationRef {
	return AnimationRef{
		ID:            md.ID,
		Title:         md.Title,
		Description:   md.Description,
		CategoryID:    categoryID,
		GroupID:       groupID,
		Tags:          NormalizeTags(md.Tags),
		DisableReplay: md.DisableReplay,
	}
}

// Unit is an opaque renderable demo implementation.
type Unit interface {
	templ.Component
}

// UnitFactory constructs a fresh Unit. Every mount and every replay calls the
// factory again, so a unit never outlives the mount it was built for.
type UnitFactory func() Unit

// Starter is implemented by units that run time-based logic once mounted.
// All timers must be scheduled through the given Scheduler.
type Starter interface {
	Start(s Scheduler) error
}

// Stopper is implemented by units that hold state needing release on unmount.
// Timers are cancelled by the owning Scheduler before Stop is called.
type Stopper interface {
	Stop()
}

// TimerHandle identifies a timer within the Scheduler that created it.
type TimerHandle uint64

// Scheduler is the only way a mounted demo may schedule work in the future.
type Scheduler interface {
	// After runs fn once after d.
	After(d time.Duration, fn func()) TimerHandle
	// Every runs fn every d until cancelled.
	Every(d time.Duration, fn func()) TimerHandle
	// Cancel stops the timer and reports whether it was still pending.
	Cancel(h TimerHandle) bool
}

// EventType represents the type of catalog change event.
type EventType string

const (
	EventTypeCommitted EventType = "committed"
	EventTypeFailed    EventType = "failed"
	EventTypeExtra     EventType = "extra"
)

// CatalogEvent is delivered to catalog subscribers whenever committed state
// changes.
type CatalogEvent struct {
	// Type indicates the kind of change
	Type EventType
	// Variant is the variant of the committed catalog
	Variant Variant
	// Generation is the token of the request that committed
	Generation uint64
	// Err is set for EventTypeFailed
	Err error
	// Timestamp records when the event occurred
	Timestamp time.Time
}
