package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeRegistry   ErrorType = "registry"
	ErrorTypeCatalog    ErrorType = "catalog"
	ErrorTypeDemo       ErrorType = "demo"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// AppError is a structured error type with context.
type AppError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	Recoverable bool
}

// Error implements the error interface.
func (e *AppError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison on type and code.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent adds component context.
func (e *AppError) WithComponent(component string) *AppError {
	e.Component = component

	return e
}

// Error creation functions

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewRegistryError creates a registry inconsistency error. Registry errors
// block the catalog entirely and are never recoverable at runtime.
func NewRegistryError(code, message string) *AppError {
	return &AppError{
		Type:        ErrorTypeRegistry,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewCatalogError creates a catalog load/refresh error. These are retryable.
func NewCatalogError(code, message string, cause error) *AppError {
	return &AppError{
		Type:        ErrorTypeCatalog,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewDemoFaultError creates a card-local demo fault.
func NewDemoFaultError(animationID string, cause error) *AppError {
	return &AppError{
		Type:        ErrorTypeDemo,
		Code:        ErrCodeDemoFault,
		Message:     "demo failed: " + animationID,
		Cause:       cause,
		Component:   animationID,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *AppError {
	return &AppError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *AppError {
	return &AppError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *AppError {
	return &AppError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Recoverable
	}

	return false
}

// IsRegistryError checks if an error is a registry inconsistency.
func IsRegistryError(err error) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Type == ErrorTypeRegistry
	}

	return false
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle processes an error with appropriate logging.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var ae *AppError
	if !errors.As(err, &ae) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch ae.Type {
	case ErrorTypeCatalog, ErrorTypeDemo, ErrorTypeValidation:
		h.logger.Warn(ctx, err, "Recoverable error occurred",
			"type", ae.Type,
			"code", ae.Code,
			"component", ae.Component)
	default:
		h.logger.Error(ctx, err, "Error occurred",
			"type", ae.Type,
			"code", ae.Code,
			"component", ae.Component)
	}
}

// Common error codes.
const (
	ErrCodeOrphanMetadata        = "ERR_ORPHAN_METADATA"
	ErrCodeUndocumentedComponent = "ERR_UNDOCUMENTED_COMPONENT"
	ErrCodeRegistryInconsistent  = "ERR_REGISTRY_INCONSISTENT"
	ErrCodeCatalogLoad           = "ERR_CATALOG_LOAD"
	ErrCodeSuperseded            = "ERR_SUPERSEDED"
	ErrCodeGroupNotFound         = "ERR_GROUP_NOT_FOUND"
	ErrCodeCategoryNotFound      = "ERR_CATEGORY_NOT_FOUND"
	ErrCodeAnimationNotFound     = "ERR_ANIMATION_NOT_FOUND"
	ErrCodeDuplicateAnimation    = "ERR_DUPLICATE_ANIMATION"
	ErrCodeDemoFault             = "ERR_DEMO_FAULT"
	ErrCodeManifestInvalid       = "ERR_MANIFEST_INVALID"
	ErrCodeConfigInvalid         = "ERR_CONFIG_INVALID"
	ErrCodeValidationFailed      = "ERR_VALIDATION_FAILED"
	ErrCodeInternalError         = "ERR_INTERNAL"
)

// Sentinels for errors.Is comparisons.
var (
	ErrRegistryInconsistent = NewRegistryError(ErrCodeRegistryInconsistent, "registry inconsistent")
	ErrSuperseded           = NewCatalogError(ErrCodeSuperseded, "request superseded by a newer one", nil)
)

// ErrGroupNotFound creates a group lookup error.
func ErrGroupNotFound(id string) *AppError {
	return NewValidationError(ErrCodeGroupNotFound, "group not found: "+id)
}

// ErrCategoryNotFound creates a category lookup error.
func ErrCategoryNotFound(id string) *AppError {
	return NewValidationError(ErrCodeCategoryNotFound, "category not found: "+id)
}

// ErrAnimationNotFound creates an animation lookup error.
func ErrAnimationNotFound(id string) *AppError {
	return NewValidationError(ErrCodeAnimationNotFound, "animation not found: "+id)
}
