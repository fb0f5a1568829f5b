package serrors

import "fmt"

// Error codes shared by the normalizer and aggregator skills. Callers branch
// on Code, never on error identity.
const (
	CodeParamMissing        = "PARAM_MISSING"
	CodeParamInvalid        = "PARAM_INVALID"
	CodeRegistryLoadError   = "REGISTRY_LOAD_ERROR"
	CodeDomainNotFound      = "DOMAIN_NOT_FOUND"
	CodeAggregationNotFound = "AGGREGATION_NOT_FOUND"
	CodeDomainDisabled      = "DOMAIN_DISABLED"
	CodeAggregationDisabled = "AGGREGATION_DISABLED"
	CodeDBConfigMissing     = "DB_CONFIG_MISSING"
	CodeDBConnectionError   = "DB_CONNECTION_ERROR"
	CodeNormalizationError  = "NORMALIZATION_ERROR"
	CodeAggregationError    = "AGGREGATION_ERROR"
)

// BaseError is a coded error with optional field attribution and a retryable
// hint. It is the only error type that crosses the skill boundary.
type BaseError struct {
	Code      string
	Message   string
	Field     string
	Retryable bool
	cause     error
}

func (e *BaseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BaseError) Unwrap() error {
	return e.cause
}

func NewError(code, message string) *BaseError {
	return &BaseError{Code: code, Message: message}
}

func (e *BaseError) WithCause(cause error) *BaseError {
	e.cause = cause
	return e
}

func (e *BaseError) AsRetryable() *BaseError {
	e.Retryable = true
	return e
}

func NewFieldRequiredError(field string) *BaseError {
	return &BaseError{
		Code:    CodeParamMissing,
		Message: fmt.Sprintf("required parameter %q is missing", field),
		Field:   field,
	}
}

func NewFieldInvalidError(field, reason string) *BaseError {
	return &BaseError{
		Code:    CodeParamInvalid,
		Message: fmt.Sprintf("invalid parameter %q: %s", field, reason),
		Field:   field,
	}
}

// NewRegistryError reports a registry problem at the given document path,
// e.g. "domains.funding.sources[0].table".
func NewRegistryError(path, reason string) *BaseError {
	return &BaseError{
		Code:    CodeRegistryLoadError,
		Message: fmt.Sprintf("registry: %s: %s", path, reason),
		Field:   path,
	}
}
