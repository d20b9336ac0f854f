package manifest

import (
	"context"

	"github.com/conneroisu/motiondeck/internal/logging"
	"github.com/conneroisu/motiondeck/internal/registry"
)

// Source re-reads the manifest on every Load and resolves it against the
// registered components. It satisfies catalog.Source.
type Source struct {
	// Path is the manifest file; empty means the built-in manifest.
	Path string
	// Components returns the renderable units to resolve against.
	Components func() []registry.ComponentDecl
	Strict     bool
	Logger     logging.Logger
}

// Load reads and resolves the manifest.
func (s *Source) Load(ctx context.Context) (*registry.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := Load(s.Path)
	if err != nil {
		return nil, err
	}
	decls := m.Declarations()
	if s.Components != nil {
		decls.Components = s.Components()
	}
	return registry.Resolve(decls, registry.Options{Strict: s.Strict, Logger: s.Logger})
}
