package errors

// ErrorBuilder provides a fluent API for creating ClassifiedError instances.
type ErrorBuilder struct {
	category ErrorCategory
	severity ErrorSeverity
	message  string
	cause    error
	context  ErrorContext
}

// NewError creates a new ErrorBuilder with the specified category and message.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{
		category: category,
		severity: SeverityError,
		message:  message,
		context:  make(ErrorContext),
	}
}

// WrapError creates a new ErrorBuilder that wraps an existing error.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	b := NewError(category, message)
	b.cause = err
	return b
}

// WithSeverity sets the error severity.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.severity = severity
	return b
}

// WithContext adds a context key-value pair.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.context = b.context.Set(key, value)
	return b
}

// WithCause sets the wrapped error.
func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.cause = err
	return b
}

// Fatal sets the severity to fatal.
func (b *ErrorBuilder) Fatal() *ErrorBuilder {
	return b.WithSeverity(SeverityFatal)
}

// Warning sets the severity to warning.
func (b *ErrorBuilder) Warning() *ErrorBuilder {
	return b.WithSeverity(SeverityWarning)
}

// Build creates the final ClassifiedError.
func (b *ErrorBuilder) Build() *ClassifiedError {
	return &ClassifiedError{
		category: b.category,
		severity: b.severity,
		message:  b.message,
		cause:    b.cause,
		context:  b.context,
	}
}

// IOError creates a filesystem error.
func IOError(message string) *ErrorBuilder {
	return NewError(CategoryIO, message).Fatal()
}

// WalkError creates a directory traversal error.
func WalkError(message string) *ErrorBuilder {
	return NewError(CategoryWalk, message).Fatal()
}

// DecodeError creates a descriptor decoding error.
func DecodeError(message string) *ErrorBuilder {
	return NewError(CategoryDecode, message).Fatal()
}

// NetworkError creates an HTTP transfer error.
func NetworkError(message string) *ErrorBuilder {
	return NewError(CategoryNetwork, message).Fatal()
}

// VCSError creates a version control error.
func VCSError(message string) *ErrorBuilder {
	return NewError(CategoryVCS, message).Fatal()
}

// ScriptError creates a build or package script error.
func ScriptError(message string) *ErrorBuilder {
	return NewError(CategoryScript, message).Fatal()
}

// ValidationError creates an invocation or input validation error.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).Fatal()
}

// ConfigError creates a tool configuration error.
func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal()
}

// InternalError creates an internal error.
func InternalError(message string) *ErrorBuilder {
	return NewError(CategoryInternal, message).Fatal()
}
