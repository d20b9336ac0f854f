package errors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorError(t *testing.T) {
	err := NewCatalogError(ErrCodeCatalogLoad, "catalog load failed", fmt.Errorf("disk on fire")).
		WithComponent("catalog")
	assert.Equal(t, "[ERR_CATALOG_LOAD] component:catalog catalog load failed: disk on fire", err.Error())

	assert.Equal(t, "[ERR_GROUP_NOT_FOUND] group not found: nope", ErrGroupNotFound("nope").Error())
}

func TestAppErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("refresh: %w", NewCatalogError(ErrCodeSuperseded, "stale", nil))
	assert.ErrorIs(t, wrapped, ErrSuperseded, "matches on type and code, not message")
	assert.NotErrorIs(t, wrapped, ErrRegistryInconsistent)

	cause := errors.New("io")
	err := NewIOError(ErrCodeManifestInvalid, "read manifest", cause)
	assert.ErrorIs(t, err, cause)
}

func TestAppErrorWithContext(t *testing.T) {
	err := NewValidationError(ErrCodeValidationFailed, "bad").
		WithContext("field", "port").
		WithContext("value", 70000)
	assert.Equal(t, map[string]interface{}{"field": "port", "value": 70000}, err.Context)
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		recoverable bool
		registry    bool
	}{
		{"validation", NewValidationError(ErrCodeValidationFailed, "x"), true, false},
		{"catalog", NewCatalogError(ErrCodeCatalogLoad, "x", nil), true, false},
		{"demo fault", NewDemoFaultError("countdown", errors.New("boom")), true, false},
		{"registry", NewRegistryError(ErrCodeRegistryInconsistent, "x"), false, true},
		{"config", NewConfigError(ErrCodeConfigInvalid, "x"), false, false},
		{"internal", NewInternalError(ErrCodeInternalError, "x", nil), false, false},
		{"wrapped registry", fmt.Errorf("load: %w", ErrRegistryInconsistent), false, true},
		{"plain", errors.New("plain"), false, false},
		{"nil", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.recoverable, IsRecoverable(tt.err))
			assert.Equal(t, tt.registry, IsRegistryError(tt.err))
		})
	}
}

func TestDemoFaultError(t *testing.T) {
	err := NewDemoFaultError("typewriter", errors.New("nil text"))
	assert.Equal(t, ErrorTypeDemo, err.Type)
	assert.Equal(t, "typewriter", err.Component)
	assert.Contains(t, err.Error(), "demo failed: typewriter")
}

type logCall struct {
	level string
	err   error
}

type recordingLogger struct {
	mu    sync.Mutex
	calls []logCall
}

func (l *recordingLogger) Error(_ context.Context, err error, _ string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, logCall{"error", err})
}

func (l *recordingLogger) Warn(_ context.Context, err error, _ string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, logCall{"warn", err})
}

func TestErrorHandler(t *testing.T) {
	logger := &recordingLogger{}
	h := NewErrorHandler(logger)
	ctx := context.Background()

	h.Handle(ctx, nil)
	h.Handle(ctx, NewCatalogError(ErrCodeCatalogLoad, "x", nil))
	h.Handle(ctx, ErrRegistryInconsistent)
	h.Handle(ctx, errors.New("plain"))

	require.Len(t, logger.calls, 3)
	assert.Equal(t, "warn", logger.calls[0].level)
	assert.Equal(t, "error", logger.calls[1].level)
	assert.Equal(t, "error", logger.calls[2].level)

	NewErrorHandler(nil).Handle(ctx, errors.New("no logger, no panic"))
}

func TestDemoFaultString(t *testing.T) {
	f := &DemoFault{AnimationID: "countdown", MountKey: 2, Phase: "start", Message: "boom"}
	assert.Equal(t, "countdown#2: start: boom", f.Error())
}

func TestFaultLog(t *testing.T) {
	fl := NewFaultLog(3)
	for i := 0; i < 5; i++ {
		fl.Add(DemoFault{AnimationID: fmt.Sprintf("a%d", i%2), MountKey: i})
	}

	faults := fl.Faults()
	require.Len(t, faults, 3, "oldest entries are dropped")
	assert.Equal(t, 2, faults[0].MountKey)
	assert.Equal(t, 4, faults[2].MountKey)
	assert.False(t, faults[0].Timestamp.IsZero(), "timestamp filled in")

	assert.Len(t, fl.ByAnimation("a0"), 2)
	assert.Len(t, fl.ByAnimation("a1"), 1)
	assert.Empty(t, fl.ByAnimation("ghost"))

	faults[0].AnimationID = "mutated"
	assert.NotEqual(t, "mutated", fl.Faults()[0].AnimationID, "Faults returns a copy")

	fl.Clear()
	assert.Equal(t, 0, fl.Len())
}

func TestFaultLog_KeepsTimestamp(t *testing.T) {
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	fl := NewFaultLog(0)
	fl.Add(DemoFault{AnimationID: "x", Timestamp: at})
	assert.Equal(t, at, fl.Faults()[0].Timestamp)
}

func TestFaultLog_Concurrent(t *testing.T) {
	fl := NewFaultLog(50)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				fl.Add(DemoFault{AnimationID: fmt.Sprintf("g%d", g), MountKey: i})
				_ = fl.Len()
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 50, fl.Len())
}
