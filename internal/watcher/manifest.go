package watcher

import (
	"context"
	"time"

	"github.com/conneroisu/motiondeck/internal/catalog"
	"github.com/conneroisu/motiondeck/internal/logging"
	"github.com/conneroisu/motiondeck/internal/monitoring"
	"github.com/conneroisu/motiondeck/internal/types"
)

// DefaultDebounce is the quiet period before a manifest edit triggers a
// refresh.
const DefaultDebounce = 200 * time.Millisecond

// Refresher rebuilds the catalog for a variant.
type Refresher interface {
	Refresh(ctx context.Context, variant types.Variant) (*catalog.Catalog, error)
}

// ManifestWatcher refreshes the catalog whenever the manifest file changes.
type ManifestWatcher struct {
	fw      *FileWatcher
	path    string
	target  Refresher
	variant func() types.Variant
	logger  logging.Logger
	ctx     context.Context
}

// NewManifestWatcher watches path. variant reports the variant to refresh,
// normally the currently selected code mode.
func NewManifestWatcher(path string, target Refresher, variant func() types.Variant,
	debounce time.Duration, logger logging.Logger, metrics *monitoring.ApplicationMetrics) (*ManifestWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := NewFileWatcher(debounce, logger, metrics)
	if err != nil {
		return nil, err
	}
	if err := fw.WatchFile(path); err != nil {
		_ = fw.Stop()
		return nil, err
	}

	mw := &ManifestWatcher{
		fw:      fw,
		path:    path,
		target:  target,
		variant: variant,
		logger:  fw.logger,
	}
	fw.AddHandler(mw.handle)
	return mw, nil
}

// Start begins watching until ctx is done or Stop is called.
func (mw *ManifestWatcher) Start(ctx context.Context) error {
	mw.ctx = ctx
	return mw.fw.Start(ctx)
}

// Stop releases the underlying watcher.
func (mw *ManifestWatcher) Stop() error {
	return mw.fw.Stop()
}

func (mw *ManifestWatcher) handle(events []ChangeEvent) error {
	ctx := mw.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	v := mw.variant()
	mw.logger.Info(ctx, "Manifest changed, refreshing catalog",
		"path", mw.path, "variant", v, "events", len(events))

	// A failed refresh is already recorded by the catalog and surfaced to
	// clients; it is returned so the watcher logs it too.
	_, err := mw.target.Refresh(ctx, v)
	return err
}
