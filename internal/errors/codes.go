package errors

// Error codes shared across modules.
const (
	CodeTransportGeneric  = "TRN-000"
	CodeTransportStatus   = "TRN-001"
	CodeTransportRetries  = "TRN-002"
	CodeParseGeneric      = "PRS-000"
	CodeParseManifest     = "PRS-001"
	CodeParseLocalState   = "PRS-002"
	CodeStorageGeneric    = "STO-000"
	CodeStorageBlob       = "STO-001"
	CodeConfigGeneric     = "CFG-000"
	CodeValidationGeneric = "VAL-000"
	CodeValidationHash    = "VAL-001"
	CodeBatchPartial      = "BAT-001"
	CodeSystemGeneric     = "SYS-000"
)
