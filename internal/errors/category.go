package errors

// ErrorCategory groups related application errors for unified handling.
type ErrorCategory string

const (
	// ErrCategoryTransport covers unreachable hosts, transport API failures and
	// non-success responses. Callers treat it as "no update info available".
	ErrCategoryTransport ErrorCategory = "TRANSPORT"
	// ErrCategoryParse covers malformed manifests and unreadable stored state.
	ErrCategoryParse      ErrorCategory = "PARSE"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryConfig     ErrorCategory = "CONFIG"
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	// ErrCategoryBatch summarises a download batch where some items failed.
	ErrCategoryBatch  ErrorCategory = "BATCH"
	ErrCategorySystem ErrorCategory = "SYSTEM"
)
