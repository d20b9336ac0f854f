package tracing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.False(t, cfg.Enabled, "tracing should be disabled by default")
	require.Equal(t, "stdout", cfg.Exporter)
	require.Equal(t, 1.0, cfg.SampleRate)
	require.Equal(t, "motiondeck", cfg.ServiceName)
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(Config{Enabled: false})
	require.NoError(t, err)
	require.False(t, provider.Enabled())

	ctx, span := provider.Tracer().Start(context.Background(), "test-span")
	require.NotNil(t, ctx)
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_FileExporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces", "spans.json")
	provider, err := NewProvider(Config{Enabled: true, Exporter: "file", FilePath: path})
	require.NoError(t, err)
	require.True(t, provider.Enabled())

	_, span := provider.Tracer().Start(context.Background(), "catalog.load")
	span.End()
	require.NoError(t, provider.Shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "catalog.load")
}

func TestNewProvider_Errors(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, Exporter: "file"})
	assert.Error(t, err)

	_, err = NewProvider(Config{Enabled: true, Exporter: "zipkin"})
	assert.Error(t, err)
}

func TestNewWithExporter_RecordsAttributes(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	provider := NewWithExporter(Config{ServiceName: "test"}, exp)

	_, span := provider.Tracer().Start(context.Background(), "op")
	span.SetAttributes(AttrVariant.String("css"), AttrGeneration.Int64(3))
	span.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "op", spans[0].Name)
	assert.Contains(t, spans[0].Attributes, AttrVariant.String("css"))
}

func TestNilProviderIsSafe(t *testing.T) {
	var p *Provider
	assert.False(t, p.Enabled())
	_, span := p.Tracer().Start(context.Background(), "x")
	span.End()
	assert.NoError(t, p.Shutdown(context.Background()))
}
