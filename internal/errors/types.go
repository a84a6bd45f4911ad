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
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeDependency ErrorType = "dependency"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// KilnError is a structured error type with context.
type KilnError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	FilePath    string
	Line        int
	Column      int
	Recoverable bool
}

// Error implements the error interface.
func (e *KilnError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, e.Component+":")
	}

	parts = append(parts, e.Message)

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, "["+location+"]")
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *KilnError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *KilnError) Is(target error) bool {
	var t *KilnError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *KilnError) WithContext(key string, value interface{}) *KilnError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *KilnError) WithLocation(filePath string, line, column int) *KilnError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// WithComponent adds component context.
func (e *KilnError) WithComponent(component string) *KilnError {
	e.Component = component

	return e
}

// Error creation functions

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *KilnError {
	return &KilnError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *KilnError {
	return &KilnError{
		Type:        ErrorTypeSecurity,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewBuildError creates a build error.
func NewBuildError(code, message string, cause error) *KilnError {
	return &KilnError{
		Type:        ErrorTypeBuild,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewDependencyError creates a dependency resolution error.
func NewDependencyError(code, message string) *KilnError {
	return &KilnError{
		Type:        ErrorTypeDependency,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *KilnError {
	return &KilnError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *KilnError {
	return &KilnError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *KilnError {
	return &KilnError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// Error recovery and handling utilities

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ke *KilnError
	if errors.As(err, &ke) {
		return ke.Recoverable
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

// Handle reports err through the handler's logger. Recoverable errors are
// logged as warnings, everything else as errors. fields and the location of
// err are appended to the record.
func (h *ErrorHandler) Handle(ctx context.Context, err error, fields ...interface{}) {
	if err == nil || h.logger == nil {
		return
	}
	fields = append(fields, Fields(err)...)

	var ke *KilnError
	if !errors.As(err, &ke) {
		h.logger.Error(ctx, err, "Unhandled error occurred", fields...)
		return
	}

	if IsRecoverable(err) {
		h.logger.Warn(ctx, err, "Recovered from error",
			append([]interface{}{"type", ke.Type, "code", ke.Code}, fields...)...)
		return
	}

	h.logger.Error(ctx, err, "Error occurred",
		append([]interface{}{"type", ke.Type, "code", ke.Code}, fields...)...)
}

// Common error codes.
const (
	ErrCodeInvalidPath          = "ERR_INVALID_PATH"
	ErrCodePathTraversal        = "ERR_PATH_TRAVERSAL"
	ErrCodeCommandInjection     = "ERR_COMMAND_INJECTION"
	ErrCodeConfigInvalid        = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound         = "ERR_FILE_NOT_FOUND"
	ErrCodeInvalidResource      = "ERR_INVALID_RESOURCE"
	ErrCodeCacheUninitialized   = "ERR_CACHE_UNINITIALIZED"
	ErrCodeCircularDependency   = "ERR_CIRCULAR_DEPENDENCY"
	ErrCodeEmbedNotFound        = "ERR_EMBED_NOT_FOUND"
	ErrCodeUnsupportedDirective = "ERR_UNSUPPORTED_DIRECTIVE"
	ErrCodeMissingCacheRecord   = "ERR_MISSING_CACHE_RECORD"
	ErrCodeStageFailed          = "ERR_STAGE_FAILED"
)

// Sentinels for errors.Is. Only Type and Code take part in the comparison.
var (
	ErrCircularDependency   = NewDependencyError(ErrCodeCircularDependency, "circular dependency")
	ErrEmbedNotFound        = NewDependencyError(ErrCodeEmbedNotFound, "unable to embed non-existent file")
	ErrUnsupportedDirective = NewInternalError(ErrCodeUnsupportedDirective, "unsupported directive", nil)
	ErrMissingCacheRecord   = &KilnError{Type: ErrorTypeDependency, Code: ErrCodeMissingCacheRecord}
	ErrStageFailed          = NewBuildError(ErrCodeStageFailed, "stage failed", nil)
	ErrInvalidResource      = NewValidationError(ErrCodeInvalidResource, "invalid resource")
	ErrCacheUninitialized   = NewConfigError(ErrCodeCacheUninitialized, "uninitialized compile cache directory")
)

// Helper functions for common errors

// ErrInvalidPath creates a path validation error.
func ErrInvalidPath(path string) *KilnError {
	return NewValidationError(ErrCodeInvalidPath, "invalid path: "+path)
}

// ErrPathTraversal creates a path traversal security error.
func ErrPathTraversal(path string) *KilnError {
	return NewSecurityError(ErrCodePathTraversal, "path traversal attempt: "+path)
}

// ErrCommandInjection creates a command injection security error.
func ErrCommandInjection(command string) *KilnError {
	return NewSecurityError(
		ErrCodeCommandInjection,
		"command injection attempt: "+command,
	)
}

// SelfEmbed reports a resource that embeds itself.
func SelfEmbed(path string) *KilnError {
	return NewDependencyError(
		ErrCodeCircularDependency,
		"unable to embed file ["+path+"] into itself",
	).WithContext("chain", []string{path, path})
}

// CircularDependency reports an embedding cycle. chain lists real paths in
// embedding order and starts and ends with the same path.
func CircularDependency(chain []string) *KilnError {
	return NewDependencyError(
		ErrCodeCircularDependency,
		"circular dependency on ["+strings.Join(chain, "] -> [")+"]",
	).WithContext("chain", chain)
}

// EmbedNotFound reports an embed directive whose target does not exist.
func EmbedNotFound(literal string) *KilnError {
	return NewDependencyError(
		ErrCodeEmbedNotFound,
		"unable to embed non-existent file ["+literal+"]",
	)
}

// UnsupportedDirective reports a directive keyword outside the closed set.
func UnsupportedDirective(keyword string) *KilnError {
	return NewInternalError(
		ErrCodeUnsupportedDirective,
		"unsupported directive tag ["+keyword+"]",
		nil,
	)
}

// MissingCacheRecord reports a dep directive on a resource without a cache
// record. It is recoverable: the directive is dropped and compilation goes on.
func MissingCacheRecord(path string) *KilnError {
	return &KilnError{
		Type:        ErrorTypeDependency,
		Code:        ErrCodeMissingCacheRecord,
		Message:     "unable to add deps to file [" + path + "]",
		FilePath:    path,
		Recoverable: true,
	}
}

// InResource annotates err with the logical path of the resource being
// resolved. The result still matches err with errors.Is and errors.As.
func InResource(err error, subpath string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w in [%s]", err, subpath)
}
