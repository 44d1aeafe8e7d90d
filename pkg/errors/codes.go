package errors

import (
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// The prefix before the underscore names the module that owns the code.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal        ErrorCode = "COMMON_001"
	ErrCodeBadRequest      ErrorCode = "COMMON_002"
	ErrCodeNotFound        ErrorCode = "COMMON_005"
	ErrCodeConflict        ErrorCode = "COMMON_006"
	ErrCodeTimeout         ErrorCode = "COMMON_009"
	ErrCodeValidation      ErrorCode = "COMMON_010"
	ErrCodeSerialization   ErrorCode = "COMMON_011"
	ErrCodeDatabaseError   ErrorCode = "COMMON_012"
	ErrCodeCacheError      ErrorCode = "COMMON_013"
	ErrCodeExternalService ErrorCode = "COMMON_014"
	ErrCodeNotImplemented  ErrorCode = "COMMON_016"
)

// Aliases kept short for call sites.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
)

// Configuration Error Codes
const (
	// ErrCodeConfigInvariant marks a configuration that violates a global
	// precondition (weights not summing to 1.0, priority bands not
	// partitioning [0,100]). Always fatal at startup.
	ErrCodeConfigInvariant ErrorCode = "CFG_001"
	ErrCodeConfigLoad      ErrorCode = "CFG_002"
)

// Source Record Error Codes.  These classify per-record issues; they are
// recorded on the run report and never abort a batch.
const (
	ErrCodeMalformedIdentifier ErrorCode = "SRC_001"
	ErrCodeUnparsableValue     ErrorCode = "SRC_002"
	ErrCodeLowConfidenceMatch  ErrorCode = "SRC_003"
	ErrCodeSourceRead          ErrorCode = "SRC_004"
)

// Pipeline Error Codes
const (
	ErrCodeStageFailed   ErrorCode = "PIPE_001"
	ErrCodeExportFailed  ErrorCode = "PIPE_002"
	ErrCodePublishFailed ErrorCode = "PIPE_003"
	ErrCodeAssetNotFound ErrorCode = "PIPE_004"
)

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:        "internal error",
	ErrCodeBadRequest:      "bad request",
	ErrCodeNotFound:        "resource not found",
	ErrCodeConflict:        "resource conflict",
	ErrCodeTimeout:         "operation timeout",
	ErrCodeValidation:      "validation failed",
	ErrCodeSerialization:   "serialization failed",
	ErrCodeDatabaseError:   "database error",
	ErrCodeCacheError:      "cache error",
	ErrCodeExternalService: "external service error",
	ErrCodeNotImplemented:  "not implemented",

	ErrCodeConfigInvariant: "configuration invariant violated",
	ErrCodeConfigLoad:      "configuration could not be loaded",

	ErrCodeMalformedIdentifier: "malformed identifier",
	ErrCodeUnparsableValue:     "unparsable value",
	ErrCodeLowConfidenceMatch:  "match below acceptance threshold",
	ErrCodeSourceRead:          "source table could not be read",

	ErrCodeStageFailed:   "pipeline stage failed",
	ErrCodeExportFailed:  "export failed",
	ErrCodePublishFailed: "publish failed",
	ErrCodeAssetNotFound: "asset not found",
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsRecordLevel reports whether code classifies a per-record issue that the
// pipeline recovers from locally.
func IsRecordLevel(code ErrorCode) bool {
	switch code {
	case ErrCodeMalformedIdentifier, ErrCodeUnparsableValue, ErrCodeLowConfidenceMatch:
		return true
	}
	return false
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
