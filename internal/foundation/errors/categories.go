package errors

import "maps"

// ErrorCategory classifies a failure so callers can route it to a message and exit code.
type ErrorCategory string

const (
	// CategoryIO covers filesystem reads and writes outside of tree walks.
	CategoryIO   ErrorCategory = "io"
	CategoryWalk ErrorCategory = "walk"

	// Descriptor loading.
	CategoryDecode         ErrorCategory = "decode"
	CategoryMissingSection ErrorCategory = "missing_section"
	CategoryNotConfig      ErrorCategory = "not_config"

	// Source resolution.
	CategoryNetwork        ErrorCategory = "network"
	CategoryVCS            ErrorCategory = "vcs"
	CategoryMissingDigest  ErrorCategory = "missing_digest"
	CategoryDigestMismatch ErrorCategory = "digest_mismatch"
	CategoryExtract        ErrorCategory = "extract"

	// Build scripts and assembly.
	CategoryScript ErrorCategory = "script"
	CategoryEncode ErrorCategory = "encode"

	// Invocation and tool configuration.
	CategoryValidation ErrorCategory = "validation"
	CategoryConfig     ErrorCategory = "config"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops the build
	SeverityError   ErrorSeverity = "error"   // Fails the current operation
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded output
	SeverityInfo    ErrorSeverity = "info"
)

// ErrorContext provides structured context for errors.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Get retrieves a context value.
func (c ErrorContext) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	value, exists := c[key]
	return value, exists
}

// GetString retrieves a string context value.
func (c ErrorContext) GetString(key string) (string, bool) {
	if value, exists := c.Get(key); exists {
		if str, ok := value.(string); ok {
			return str, true
		}
	}
	return "", false
}

// Merge combines two contexts, with other taking precedence.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	if c == nil {
		return other
	}
	if other == nil {
		return c
	}
	result := make(ErrorContext, len(c)+len(other))
	maps.Copy(result, c)
	maps.Copy(result, other)
	return result
}
