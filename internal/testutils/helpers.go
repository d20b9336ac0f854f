// Package testutils holds fixtures shared by the package tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/motiondeck/internal/config"
	"github.com/conneroisu/motiondeck/internal/tracing"
)

// PartialManifest documents only the motion fade-in, so every other
// registered demo is undocumented.
const PartialManifest = `version: 1
categories:
  - id: entrances
    title: Entrances
    groups:
      - id: fade-motion
        animations: [fade-in]
metadata:
  motion:
    fade-in:
      title: Fade In
`

// TestConfig returns a valid configuration for localhost:8080 with sessions
// that never expire during a test.
func TestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:           "localhost",
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:8080"},
			Environment:    "testing",
		},
		Catalog:  config.CatalogConfig{DefaultVariant: "motion"},
		Sessions: config.SessionsConfig{TTL: time.Hour, Cleanup: time.Hour},
		Tracing:  tracing.DefaultConfig(),
		Log:      config.LogConfig{Level: "error", Format: "text"},
	}
}

// WriteManifest writes body to deck.yml in a fresh temp dir and returns its path.
func WriteManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deck.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// CreateTempProject changes into a fresh directory holding .motiondeck.yml
// with cfg as its contents, and returns the directory.
func CreateTempProject(t *testing.T, cfg string) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	if cfg != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".motiondeck.yml"), []byte(cfg), 0o644))
	}
	return dir
}
