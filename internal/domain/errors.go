package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Configuration Errors (CONFIG_*)
	ErrorCodeConfiguration      ErrorCode = "CONFIG_INVALID"
	ErrorCodeProcessorNotFound  ErrorCode = "CONFIG_PROCESSOR_NOT_FOUND"
	ErrorCodeCredentialsMissing ErrorCode = "CONFIG_CREDENTIALS_MISSING"
	ErrorCodeSecretUnavailable  ErrorCode = "CONFIG_SECRET_UNAVAILABLE"

	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationAmountInvalid ErrorCode = "VALIDATION_AMOUNT_INVALID"
	ErrorCodeValidationMissingField  ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrorCodeValidationCurrency      ErrorCode = "VALIDATION_UNSUPPORTED_CURRENCY"
	ErrorCodeValidationMissingCard   ErrorCode = "VALIDATION_MISSING_CARD"

	// Gateway Errors (GATEWAY_*)
	ErrorCodeGatewayUnreachable ErrorCode = "GATEWAY_UNREACHABLE"
	ErrorCodeGatewayDeclined    ErrorCode = "GATEWAY_DECLINED"
	ErrorCodeGatewayProtocol    ErrorCode = "GATEWAY_PROTOCOL_ERROR"

	// Vault Errors (VAULT_*)
	ErrorCodeVaultPersistence  ErrorCode = "VAULT_PERSISTENCE_ERROR"
	ErrorCodeVaultTokenExists  ErrorCode = "VAULT_TOKEN_EXISTS"
	ErrorCodeVaultTokenMissing ErrorCode = "VAULT_TOKEN_NOT_FOUND"
	ErrorCodeBoardCardFailed   ErrorCode = "VAULT_BOARD_CARD_FAILED"

	// Host Errors (HOST_*)
	ErrorCodeHostAPI           ErrorCode = "HOST_API_ERROR"
	ErrorCodeChargeNotRecorded ErrorCode = "HOST_CHARGE_NOT_RECORDED"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by code so sentinel values work with errors.Is.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// WithDetail returns a copy of the error with one more detail field.
// Sentinels are shared, so the receiver is never modified.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{
		Err:     e.Err,
		Details: details,
		Code:    e.Code,
		Message: e.Message,
	}
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsConfigurationError reports missing or invalid merchant configuration.
func IsConfigurationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeConfiguration ||
		code == ErrorCodeProcessorNotFound ||
		code == ErrorCodeCredentialsMissing ||
		code == ErrorCodeSecretUnavailable
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeValidationFailed ||
		code == ErrorCodeValidationAmountInvalid ||
		code == ErrorCodeValidationMissingField ||
		code == ErrorCodeValidationCurrency ||
		code == ErrorCodeValidationMissingCard
}

// IsGatewayError checks if an error is a payment gateway error
func IsGatewayError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeGatewayUnreachable ||
		code == ErrorCodeGatewayDeclined ||
		code == ErrorCodeGatewayProtocol
}

// IsRetryable reports whether a fresh attempt may succeed. Only transport failures qualify.
func IsRetryable(err error) bool {
	return GetErrorCode(err) == ErrorCodeGatewayUnreachable
}

// Structured error instances
var (
	ErrConfiguration      = NewDomainError(ErrorCodeConfiguration, "payment processor is misconfigured")
	ErrProcessorNotFound  = NewDomainError(ErrorCodeProcessorNotFound, "payment processor not found")
	ErrCredentialsMissing = NewDomainError(ErrorCodeCredentialsMissing, "no valid payment processor credentials found")

	ErrValidationFailed        = NewDomainError(ErrorCodeValidationFailed, "validation failed")
	ErrValidationAmountInvalid = NewDomainError(ErrorCodeValidationAmountInvalid, "invalid amount")
	ErrValidationMissingField  = NewDomainError(ErrorCodeValidationMissingField, "required field missing")
	ErrUnsupportedCurrency     = NewDomainError(ErrorCodeValidationCurrency, "Tsys only supports USD; this transaction was not sent.")
	ErrMissingCardInfo         = NewDomainError(ErrorCodeValidationMissingCard, "missing credit card info")

	ErrGatewayUnreachable = NewDomainError(ErrorCodeGatewayUnreachable, "payment gateway unreachable")
	ErrGatewayDeclined    = NewDomainError(ErrorCodeGatewayDeclined, "payment declined by gateway")
	ErrGatewayProtocol    = NewDomainError(ErrorCodeGatewayProtocol, "unexpected gateway response")

	ErrVaultPersistence   = NewDomainError(ErrorCodeVaultPersistence, "vault token could not be saved")
	ErrVaultTokenExists   = NewDomainError(ErrorCodeVaultTokenExists, "vault token already exists")
	ErrVaultTokenNotFound = NewDomainError(ErrorCodeVaultTokenMissing, "no vault token stored for recurring series")
	ErrBoardCardFailed    = NewDomainError(ErrorCodeBoardCardFailed, "gateway did not return a vault token")

	ErrHostAPI           = NewDomainError(ErrorCodeHostAPI, "host API call failed")
	ErrChargeNotRecorded = NewDomainError(ErrorCodeChargeNotRecorded, "charge captured but contribution not recorded")
	ErrInternalError     = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError     = NewDomainError(ErrorCodeDatabaseError, "database error")
)
