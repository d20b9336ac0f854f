package config

import (
	"fmt"
	"net"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	apperrors "github.com/conneroisu/motiondeck/internal/errors"
	"github.com/conneroisu/motiondeck/internal/logging"
	"github.com/conneroisu/motiondeck/internal/types"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			fmt.Fprintf(&builder, "  - %s: %s\n", issue.Field, issue.Message)
			for _, suggestion := range issue.Suggestions {
				fmt.Fprintf(&builder, "      hint: %s\n", suggestion)
			}
		}
	}
	write("Validation errors", vr.Errors)
	write("Validation warnings", vr.Warnings)

	return builder.String()
}

var (
	validEnvironments = []string{"development", "production", "testing"}
	validExporters    = []string{"none", "stdout", "file"}
	validLogFormats   = []string{"text", "json"}
	hostnamePattern   = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9.-]*[a-zA-Z0-9])?$`)
)

// ValidateConfigWithDetails performs validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{}

	validateServerConfigDetails(&config.Server, result)
	validateCatalogConfigDetails(&config.Catalog, result)
	validateSessionsConfigDetails(&config.Sessions, result)
	validateTracingConfigDetails(config, result)
	validateLogConfigDetails(&config.Log, result)

	result.Valid = !result.HasErrors()
	return result
}

// validateConfig returns the first validation error, if any.
func validateConfig(config *Config) error {
	result := ValidateConfigWithDetails(config)
	if !result.HasErrors() {
		return nil
	}
	first := result.Errors[0]
	return apperrors.NewConfigError(apperrors.ErrCodeConfigInvalid, first.Error()).
		WithContext("field", first.Field).
		WithContext("value", first.Value)
}

func validateServerConfigDetails(config *ServerConfig, result *ValidationResult) {
	// Port 0 lets the system pick one, which the tests rely on.
	if config.Port < 0 || config.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.port",
			Value:   config.Port,
			Message: fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			Suggestions: []string{
				"Use a port between 1024-65535 for non-privileged access",
			},
		})
	} else if config.Port > 0 && config.Port < 1024 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "server.port",
			Value:   config.Port,
			Message: "port below 1024 requires elevated privileges",
		})
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.host",
				Value:   config.Host,
				Message: err.Error(),
				Suggestions: []string{
					"Use 'localhost' for local development",
					"Use '0.0.0.0' to bind to all interfaces",
				},
			})
		}
	}

	if config.Environment != "" && !slices.Contains(validEnvironments, config.Environment) {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:       "server.environment",
			Value:       config.Environment,
			Message:     "unknown environment type",
			Suggestions: []string{"Known environments: " + strings.Join(validEnvironments, ", ")},
		})
	}

	for _, origin := range config.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			result.Errors = append(result.Errors, ValidationError{
				Field:       "server.allowed_origins",
				Value:       origin,
				Message:     fmt.Sprintf("origin %q must start with http:// or https://", origin),
				Suggestions: []string{"Example: http://localhost:8080"},
			})
		}
	}
}

func validateCatalogConfigDetails(config *CatalogConfig, result *ValidationResult) {
	if _, err := types.ParseVariant(config.DefaultVariant); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "catalog.default_variant",
			Value:   config.DefaultVariant,
			Message: err.Error(),
			Suggestions: []string{
				fmt.Sprintf("Use %q or %q", types.VariantMotion, types.VariantCSS),
			},
		})
	}

	if config.Manifest != "" {
		if err := validatePath(config.Manifest); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "catalog.manifest",
				Value:   config.Manifest,
				Message: err.Error(),
			})
		} else if ext := filepath.Ext(config.Manifest); ext != ".yml" && ext != ".yaml" {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   "catalog.manifest",
				Value:   config.Manifest,
				Message: "manifest is expected to be a YAML file",
			})
		}
	}

	if config.Watch && config.Manifest == "" {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:       "catalog.watch",
			Value:       config.Watch,
			Message:     "watch has no effect with the embedded manifest",
			Suggestions: []string{"Set catalog.manifest to a file on disk"},
		})
	}
}

func validateSessionsConfigDetails(config *SessionsConfig, result *ValidationResult) {
	if config.TTL < time.Second {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "sessions.ttl",
			Value:   config.TTL,
			Message: "session ttl must be at least one second",
		})
	}
	if config.Cleanup <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "sessions.cleanup",
			Value:   config.Cleanup,
			Message: "cleanup interval must be positive",
		})
	}
}

func validateTracingConfigDetails(config *Config, result *ValidationResult) {
	tc := &config.Tracing
	if !slices.Contains(validExporters, tc.Exporter) {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "tracing.exporter",
			Value:       tc.Exporter,
			Message:     fmt.Sprintf("unknown exporter %q", tc.Exporter),
			Suggestions: []string{"Available exporters: " + strings.Join(validExporters, ", ")},
		})
	}
	if tc.Enabled && tc.Exporter == "file" && tc.FilePath == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "tracing.file_path",
			Message: "file exporter requires a file_path",
		})
	}
	if tc.SampleRate < 0 || tc.SampleRate > 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "tracing.sample_rate",
			Value:   tc.SampleRate,
			Message: "sample rate must be within [0, 1]",
		})
	}
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "log.level",
			Value:       config.Level,
			Message:     err.Error(),
			Suggestions: []string{"Use debug, info, warn or error"},
		})
	}
	if !slices.Contains(validLogFormats, config.Format) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "log.format",
			Value:   config.Format,
			Message: fmt.Sprintf("unknown log format %q", config.Format),
		})
	}
}

// validateHostname accepts IP addresses and RFC 1123 style hostnames.
func validateHostname(host string) error {
	if net.ParseIP(host) != nil {
		return nil
	}
	if len(host) > 253 || !hostnamePattern.MatchString(host) {
		return fmt.Errorf("invalid hostname %q", host)
	}
	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
