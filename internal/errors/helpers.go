package errors

import "time"

// New creates a generic AppError with the supplied metadata.
func New(category ErrorCategory, code, message string, err error) *AppError {
	return &AppError{
		Code:      code,
		Category:  category,
		Message:   message,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// TransportError creates a recoverable TRANSPORT category error.
func TransportError(code, message string, err error) *AppError {
	appErr := New(ErrCategoryTransport, code, message, err)
	appErr.Recoverable = true
	return appErr
}

// ParseError creates a recoverable PARSE category error.
func ParseError(code, message string, err error) *AppError {
	appErr := New(ErrCategoryParse, code, message, err)
	appErr.Recoverable = true
	return appErr
}

// StorageError creates a STORAGE category error.
func StorageError(code, message string, err error) *AppError {
	return New(ErrCategoryStorage, code, message, err)
}

// ConfigError creates a CONFIG category error.
func ConfigError(code, message string, err error) *AppError {
	return New(ErrCategoryConfig, code, message, err)
}

// ValidationError creates a VALIDATION category error.
func ValidationError(code, message string, err error) *AppError {
	return New(ErrCategoryValidation, code, message, err)
}

// BatchError creates a recoverable BATCH category error.
func BatchError(code, message string, err error) *AppError {
	appErr := New(ErrCategoryBatch, code, message, err)
	appErr.Recoverable = true
	return appErr
}

// SystemError creates a SYSTEM category error.
func SystemError(code, message string, err error) *AppError {
	return New(ErrCategorySystem, code, message, err)
}
