package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/conneroisu/motiondeck/internal/errors"
	"github.com/conneroisu/motiondeck/internal/logging"
	"github.com/conneroisu/motiondeck/internal/monitoring"
	"github.com/conneroisu/motiondeck/internal/registry"
	"github.com/conneroisu/motiondeck/internal/tracing"
	"github.com/conneroisu/motiondeck/internal/types"
)

// Source produces a fresh registry table. Refresh calls it every time.
type Source interface {
	Load(ctx context.Context) (*registry.Table, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (*registry.Table, error)

// Load implements Source.
func (f SourceFunc) Load(ctx context.Context) (*registry.Table, error) {
	return f(ctx)
}

// StaticSource always returns the same table.
func StaticSource(table *registry.Table) Source {
	return SourceFunc(func(context.Context) (*registry.Table, error) { return table, nil })
}

// Options configures a Service.
type Options struct {
	Logger  logging.Logger
	Metrics *monitoring.ApplicationMetrics
	Tracer  trace.Tracer
}

// Service owns the single cached Catalog.
//
// Every Load and Refresh takes a generation token when it is issued. A
// request commits its outcome, success or failure, only if its token is
// still the latest issued; otherwise its result is dropped and the caller
// gets whatever is committed.
type Service struct {
	source  Source
	logger  logging.Logger
	metrics *monitoring.ApplicationMetrics
	tracer  trace.Tracer

	mu      sync.Mutex
	latest  uint64
	err     error
	extras  map[types.Variant][]Extra
	current atomic.Pointer[Catalog]

	watchMu  sync.Mutex
	watchers []chan types.CatalogEvent
}

// NewService creates a Service with nothing committed.
func NewService(source Source, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracing.Noop().Tracer()
	}
	return &Service{
		source:  source,
		logger:  logger.WithComponent("catalog"),
		metrics: opts.Metrics,
		tracer:  tracer,
		extras:  make(map[types.Variant][]Extra),
	}
}

// Load returns the cached catalog when it was built for variant and no
// failure is committed, otherwise rebuilds. A cache hit still takes a token,
// so any older request in flight is superseded.
func (s *Service) Load(ctx context.Context, variant types.Variant) (*Catalog, error) {
	if !variant.Valid() {
		return nil, apperrors.NewValidationError(apperrors.ErrCodeValidationFailed,
			fmt.Sprintf("unknown variant %q", variant))
	}
	ctx, span := s.tracer.Start(ctx, "catalog.load", trace.WithAttributes(
		tracing.AttrOperation.String("load"),
		tracing.AttrVariant.String(variant.String()),
	))
	defer span.End()

	token, cur := s.issueCached(variant)
	span.SetAttributes(tracing.AttrGeneration.Int64(int64(token)))

	if cur != nil {
		span.SetAttributes(tracing.AttrOutcome.String(monitoring.OutcomeCached))
		s.metrics.CatalogRequest("load", variant.String(), monitoring.OutcomeCached)
		return cur, nil
	}
	return s.rebuild(ctx, span, "load", variant, token)
}

// Refresh always rebuilds variant from the Source.
func (s *Service) Refresh(ctx context.Context, variant types.Variant) (*Catalog, error) {
	if !variant.Valid() {
		return nil, apperrors.NewValidationError(apperrors.ErrCodeValidationFailed,
			fmt.Sprintf("unknown variant %q", variant))
	}
	ctx, span := s.tracer.Start(ctx, "catalog.refresh", trace.WithAttributes(
		tracing.AttrOperation.String("refresh"),
		tracing.AttrVariant.String(variant.String()),
	))
	defer span.End()

	token := s.issue()
	span.SetAttributes(tracing.AttrGeneration.Int64(int64(token)))
	return s.rebuild(ctx, span, "refresh", variant, token)
}

func (s *Service) issue() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest++
	return s.latest
}

// issueCached takes a token and returns the cached catalog when it can
// serve variant. A committed failure disables the cache.
func (s *Service) issueCached(variant types.Variant) (uint64, *Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest++
	cur := s.current.Load()
	if s.err != nil || cur == nil || cur.Variant != variant {
		return s.latest, nil
	}
	return s.latest, cur
}

func (s *Service) rebuild(ctx context.Context, span trace.Span, op string, variant types.Variant, token uint64) (*Catalog, error) {
	perf := logging.StartOperation(s.logger, "catalog."+op)
	done := s.metrics.CatalogBuild(variant.String())
	cat, err := s.build(ctx, variant)
	done()

	s.mu.Lock()
	if token != s.latest {
		latest := s.latest
		cur := s.current.Load()
		committedErr := s.err
		s.mu.Unlock()

		span.SetAttributes(tracing.AttrOutcome.String(monitoring.OutcomeDiscarded))
		s.metrics.CatalogRequest(op, variant.String(), monitoring.OutcomeDiscarded)
		s.logger.Debug(ctx, "Discarding superseded catalog request",
			"variant", variant, "generation", token, "latest", latest, "failed", err != nil)
		switch {
		case committedErr != nil:
			return nil, committedErr
		case cur == nil:
			return nil, apperrors.ErrSuperseded
		}
		return cur, nil
	}

	if err != nil {
		err = classify(err)
		s.err = err
		s.publishLocked(types.CatalogEvent{Type: types.EventTypeFailed, Variant: variant, Generation: token, Err: err})
		s.mu.Unlock()

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(tracing.AttrOutcome.String(monitoring.OutcomeFailed))
		s.metrics.CatalogRequest(op, variant.String(), monitoring.OutcomeFailed)
		perf.EndWithError(ctx, err, "variant", variant, "generation", token)
		return nil, err
	}

	cat.Generation = token
	cat = s.applyExtrasLocked(ctx, cat)
	s.current.Store(cat)
	s.err = nil
	s.publishLocked(types.CatalogEvent{Type: types.EventTypeCommitted, Variant: variant, Generation: token})
	s.mu.Unlock()

	span.SetAttributes(tracing.AttrOutcome.String(monitoring.OutcomeCommitted))
	s.metrics.CatalogRequest(op, variant.String(), monitoring.OutcomeCommitted)
	s.metrics.CatalogSize(variant.String(), cat.Len())
	perf.End(ctx, "variant", variant, "generation", token, "animations", cat.Len())
	return cat, nil
}

func (s *Service) build(ctx context.Context, variant types.Variant) (*Catalog, error) {
	table, err := s.source.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Build(table, variant)
}

// classify keeps registry and typed errors as they are and wraps anything
// else as a retryable catalog load failure.
func classify(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.NewCatalogError(apperrors.ErrCodeCatalogLoad, "catalog load failed", err)
}

// applyExtrasLocked re-projects remembered extras onto a fresh build. Extras
// whose group no longer exists are skipped.
func (s *Service) applyExtrasLocked(ctx context.Context, cat *Catalog) *Catalog {
	for _, e := range s.extras[cat.Variant] {
		next, _, err := cat.withExtra(e)
		if err != nil {
			s.logger.Warn(ctx, err, "Dropping extra from rebuilt catalog", "animation", e.Metadata.ID, "group", e.GroupID)
			continue
		}
		cat = next
	}
	return cat
}

// AddExtra appends an animation to the cached catalog at the addressed
// category and group, swapping in a modified clone. The registry table is
// never touched. The extra is remembered and re-applied on later rebuilds
// of the same variant.
func (s *Service) AddExtra(ctx context.Context, e Extra) (types.AnimationRef, error) {
	if err := e.validate(); err != nil {
		return types.AnimationRef{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return types.AnimationRef{}, s.err
	}
	cur := s.current.Load()
	if cur == nil {
		return types.AnimationRef{}, apperrors.NewCatalogError(apperrors.ErrCodeCatalogLoad, "no catalog loaded", nil)
	}
	if e.Variant == "" {
		e.Variant = cur.Variant
	}
	if e.Variant != cur.Variant {
		return types.AnimationRef{}, apperrors.NewValidationError(apperrors.ErrCodeValidationFailed,
			fmt.Sprintf("extra targets %s but the cached catalog is %s", e.Variant, cur.Variant))
	}

	next, ref, err := cur.withExtra(e)
	if err != nil {
		return types.AnimationRef{}, err
	}
	s.extras[e.Variant] = append(s.extras[e.Variant], e)
	s.current.Store(next)
	s.publishLocked(types.CatalogEvent{Type: types.EventTypeExtra, Variant: next.Variant, Generation: next.Generation})

	s.logger.Info(ctx, "Added extra animation", "animation", ref.ID, "group", ref.GroupID)
	return ref, nil
}

// Current returns the committed catalog, or nil before the first commit.
func (s *Service) Current() *Catalog {
	return s.current.Load()
}

// Err returns the error committed by the latest request, or nil once a
// later request succeeded.
func (s *Service) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Generation returns the latest issued token.
func (s *Service) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Subscribe returns a channel that receives commit events.
func (s *Service) Subscribe() <-chan types.CatalogEvent {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	ch := make(chan types.CatalogEvent, 16)
	s.watchers = append(s.watchers, ch)
	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (s *Service) Unsubscribe(ch <-chan types.CatalogEvent) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	for i, watcher := range s.watchers {
		if watcher == ch {
			close(watcher)
			s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
			break
		}
	}
}

// publishLocked runs under s.mu so events arrive in commit order.
func (s *Service) publishLocked(event types.CatalogEvent) {
	event.Timestamp = time.Now()

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, watcher := range s.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}
