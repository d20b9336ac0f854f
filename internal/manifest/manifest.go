// Package manifest reads the YAML registry manifest: the category/group
// layout and the per-variant metadata of every animation.
//
// A manifest looks like:
//
//	version: 1
//	categories:
//	  - id: timers
//	    title: Timers
//	    groups:
//	      - id: countdown-motion
//	        title: Countdown
//	        animations: [countdown]
//	metadata:
//	  motion:
//	    countdown:
//	      title: Countdown
//	      tags: [interval]
//
// Metadata ids default to their map key; titles default to the id in title
// case.
package manifest

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	apperrors "github.com/conneroisu/motiondeck/internal/errors"
	"github.com/conneroisu/motiondeck/internal/registry"
	"github.com/conneroisu/motiondeck/internal/types"
)

//go:embed default.yml
var defaultManifest []byte

// CurrentVersion is the manifest schema version this package reads.
const CurrentVersion = 1

// Manifest is the decoded manifest file.
type Manifest struct {
	Version    int                               `yaml:"version"`
	Categories []Category                        `yaml:"categories"`
	Metadata   map[string]map[string]MetadataDoc `yaml:"metadata"`
}

// Category is a category block of the manifest.
type Category struct {
	ID     string  `yaml:"id"`
	Title  string  `yaml:"title,omitempty"`
	Groups []Group `yaml:"groups"`
}

// Group is a group block of the manifest.
type Group struct {
	ID         string   `yaml:"id"`
	Title      string   `yaml:"title,omitempty"`
	TechHint   string   `yaml:"tech_hint,omitempty"`
	Variant    string   `yaml:"variant,omitempty"`
	Animations []string `yaml:"animations"`
}

// MetadataDoc is one metadata entry. ID is optional and, when set, must
// equal the key it is declared under.
type MetadataDoc struct {
	ID            string   `yaml:"id,omitempty"`
	Title         string   `yaml:"title,omitempty"`
	Description   string   `yaml:"description,omitempty"`
	Tags          []string `yaml:"tags,omitempty"`
	DisableReplay bool     `yaml:"disable_replay,omitempty"`
}

// Default returns the built-in manifest bytes.
func Default() []byte {
	return append([]byte(nil), defaultManifest...)
}

// Load reads the manifest at path, or the built-in one when path is empty.
func Load(path string) (*Manifest, error) {
	if path == "" {
		return Parse(defaultManifest)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewIOError(apperrors.ErrCodeManifestInvalid, "cannot read manifest", err).
			WithContext("path", path)
	}
	m, err := Parse(data)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			appErr.WithContext("path", path)
		}
		return nil, err
	}
	return m, nil
}

// Parse decodes and validates manifest bytes. Unknown fields are rejected.
func Parse(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, apperrors.NewValidationError(apperrors.ErrCodeManifestInvalid,
			fmt.Sprintf("invalid manifest: %v", err))
	}
	if m.Version == 0 {
		m.Version = CurrentVersion
	}
	if m.Version != CurrentVersion {
		return nil, apperrors.NewValidationError(apperrors.ErrCodeManifestInvalid,
			fmt.Sprintf("unsupported manifest version %d", m.Version))
	}
	for variant := range m.Metadata {
		if _, err := types.ParseVariant(variant); err != nil {
			return nil, apperrors.NewValidationError(apperrors.ErrCodeManifestInvalid, err.Error())
		}
	}
	return &m, nil
}

// Declarations converts the manifest into registry declarations without
// components.
func (m *Manifest) Declarations() registry.Declarations {
	var d registry.Declarations

	for _, c := range m.Categories {
		cat := registry.CategoryDecl{ID: c.ID, Title: titleOr(c.Title, c.ID)}
		for _, g := range c.Groups {
			cat.Groups = append(cat.Groups, registry.GroupDecl{
				ID:         g.ID,
				Title:      titleOr(g.Title, groupStem(g.ID)),
				TechHint:   g.TechHint,
				Variant:    types.Variant(strings.ToLower(g.Variant)),
				Animations: append([]string(nil), g.Animations...),
			})
		}
		d.Categories = append(d.Categories, cat)
	}

	variants := make([]string, 0, len(m.Metadata))
	for v := range m.Metadata {
		variants = append(variants, v)
	}
	sort.Strings(variants)
	for _, v := range variants {
		variant, _ := types.ParseVariant(v)
		byKey := m.Metadata[v]
		keys := make([]string, 0, len(byKey))
		for k := range byKey {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			doc := byKey[key]
			id := doc.ID
			if id == "" {
				id = key
			}
			d.Metadata = append(d.Metadata, registry.MetadataDecl{
				Key:     key,
				Variant: variant,
				Metadata: types.Metadata{
					ID:            id,
					Title:         titleOr(doc.Title, id),
					Description:   strings.TrimSpace(doc.Description),
					Tags:          doc.Tags,
					DisableReplay: doc.DisableReplay,
				},
			})
		}
	}
	return d
}

// Encode writes m as YAML.
func (m *Manifest) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return err
	}
	return enc.Close()
}

// titleOr returns title, or id humanised ("stagger-reveal" -> "Stagger Reveal").
func titleOr(title, id string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return cases.Title(language.English).String(strings.NewReplacer("-", " ", "_", " ").Replace(id))
}

func groupStem(id string) string {
	if v, ok := types.VariantOfGroup(id); ok {
		return strings.TrimSuffix(id, v.Suffix())
	}
	return id
}
