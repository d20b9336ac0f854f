package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/conneroisu/motiondeck/internal/errors"
	"github.com/conneroisu/motiondeck/internal/types"
)

func TestLoadFrom_Defaults(t *testing.T) {
	config, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, []string{"http://localhost:8080"}, config.Server.AllowedOrigins)
	assert.Equal(t, types.VariantMotion, config.Variant())
	assert.False(t, config.Catalog.Strict)
	assert.Equal(t, 30*time.Minute, config.Sessions.TTL)
	assert.Equal(t, 5*time.Minute, config.Sessions.Cleanup)
	assert.False(t, config.Tracing.Enabled)
	assert.Equal(t, "stdout", config.Tracing.Exporter)
	assert.Equal(t, "motiondeck", config.Tracing.ServiceName)
	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, "localhost:8080", config.Addr())
}

func TestLoadFrom(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(v *viper.Viper)
		wantField string
		check     func(t *testing.T, c *Config)
	}{
		{
			name: "css default variant",
			setup: func(v *viper.Viper) {
				v.Set("catalog.default_variant", "CSS")
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, types.VariantCSS, c.Variant())
			},
		},
		{
			name: "explicit origins are kept",
			setup: func(v *viper.Viper) {
				v.Set("server.allowed_origins", []string{"https://demo.example"})
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, []string{"https://demo.example"}, c.Server.AllowedOrigins)
			},
		},
		{
			name:      "unknown variant",
			setup:     func(v *viper.Viper) { v.Set("catalog.default_variant", "svg") },
			wantField: "catalog.default_variant",
		},
		{
			name:      "port out of range",
			setup:     func(v *viper.Viper) { v.Set("server.port", 70000) },
			wantField: "server.port",
		},
		{
			name:      "host with shell characters",
			setup:     func(v *viper.Viper) { v.Set("server.host", "localhost;rm") },
			wantField: "server.host",
		},
		{
			name:      "origin without scheme",
			setup:     func(v *viper.Viper) { v.Set("server.allowed_origins", []string{"localhost:8080"}) },
			wantField: "server.allowed_origins",
		},
		{
			name:      "manifest path traversal",
			setup:     func(v *viper.Viper) { v.Set("catalog.manifest", "../../etc/passwd") },
			wantField: "catalog.manifest",
		},
		{
			name:      "zero ttl",
			setup:     func(v *viper.Viper) { v.Set("sessions.ttl", "0s") },
			wantField: "sessions.ttl",
		},
		{
			name:      "unknown exporter",
			setup:     func(v *viper.Viper) { v.Set("tracing.exporter", "jaeger") },
			wantField: "tracing.exporter",
		},
		{
			name: "file exporter without path",
			setup: func(v *viper.Viper) {
				v.Set("tracing.enabled", true)
				v.Set("tracing.exporter", "file")
			},
			wantField: "tracing.file_path",
		},
		{
			name:      "bad log level",
			setup:     func(v *viper.Viper) { v.Set("log.level", "loud") },
			wantField: "log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			config, err := LoadFrom(v)
			if tt.wantField != "" {
				require.Error(t, err)
				assert.Nil(t, config)
				var ae *apperrors.AppError
				require.ErrorAs(t, err, &ae)
				assert.Equal(t, apperrors.ErrCodeConfigInvalid, ae.Code)
				assert.Equal(t, tt.wantField, ae.Context["field"])
				return
			}
			require.NoError(t, err)
			tt.check(t, config)
		})
	}
}

func TestLoadFrom_UnmarshalError(t *testing.T) {
	v := viper.New()
	v.Set("server.port", "not-a-port")

	_, err := LoadFrom(v)
	assert.Error(t, err)
}

func TestConfigure_FileAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile(".motiondeck.yml", []byte(`
server:
  port: 3000
catalog:
  default_variant: css
  strict: true
sessions:
  ttl: 10m
`), 0o600))
	t.Setenv("MOTIONDECK_SERVER_PORT", "4000")
	t.Setenv("MOTIONDECK_LOG_FORMAT", "json")

	v := viper.New()
	require.NoError(t, Configure(v, ""))
	config, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, 4000, config.Server.Port, "environment wins over the file")
	assert.Equal(t, types.VariantCSS, config.Variant())
	assert.True(t, config.Catalog.Strict)
	assert.Equal(t, 10*time.Minute, config.Sessions.TTL)
	assert.Equal(t, "json", config.Log.Format)
}

func TestConfigure_MissingDefaultFileIsFine(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, Configure(viper.New(), ""))
}

func TestConfigure_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yml")
	require.NoError(t, os.WriteFile(path, []byte("catalog:\n  watch: true\n  manifest: deck.yml\n"), 0o600))

	t.Run("from env", func(t *testing.T) {
		t.Setenv("MOTIONDECK_CONFIG_FILE", path)
		v := viper.New()
		require.NoError(t, Configure(v, ""))
		config, err := LoadFrom(v)
		require.NoError(t, err)
		assert.True(t, config.Catalog.Watch)
		assert.Equal(t, "deck.yml", config.Catalog.Manifest)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		err := Configure(viper.New(), filepath.Join(dir, "nope.yml"))
		assert.Error(t, err)
	})
}

func TestValidateConfigWithDetails_Warnings(t *testing.T) {
	config, err := LoadFrom(viper.New())
	require.NoError(t, err)

	config.Server.Port = 80
	config.Server.Environment = "staging"
	config.Catalog.Watch = true

	result := ValidateConfigWithDetails(config)
	assert.True(t, result.Valid)
	require.True(t, result.HasWarnings())

	var fields []string
	for _, w := range result.Warnings {
		fields = append(fields, w.Field)
	}
	assert.ElementsMatch(t, []string{"server.port", "server.environment", "catalog.watch"}, fields)
	assert.Contains(t, result.String(), "Validation warnings")
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, validatePath("manifests/deck.yml"))
	assert.Error(t, validatePath(""))
	assert.Error(t, validatePath("a/../../b"))
	assert.Error(t, validatePath("deck.yml;rm"))
}
