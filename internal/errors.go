package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAmount    ErrorCode = "INVALID_AMOUNT"
	ErrCodeInvalidMonth     ErrorCode = "INVALID_MONTH"
	ErrCodeInvalidCategory  ErrorCode = "INVALID_CATEGORY"
	ErrCodeInvalidDate      ErrorCode = "INVALID_DATE"
	ErrCodeInvalidFile      ErrorCode = "INVALID_FILE"

	ErrCodeNotAuthorized          ErrorCode = "NOT_AUTHORIZED"
	ErrCodeInvalidProgressStep    ErrorCode = "INVALID_PROGRESS_STEP"
	ErrCodeInvalidRequestStatus   ErrorCode = "INVALID_REQUEST_STATUS"
	ErrCodeMissingSelection       ErrorCode = "MISSING_SELECTION"
	ErrCodeSettingLocked          ErrorCode = "SETTING_LOCKED"
	ErrCodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"
	ErrCodeDuplicatePosition      ErrorCode = "DUPLICATE_POSITION"
	ErrCodeDuplicateEmail         ErrorCode = "DUPLICATE_EMAIL"

	ErrCodeLastAdminProtection    ErrorCode = "LAST_ADMIN_PROTECTION"
	ErrCodeSelfModificationDenied ErrorCode = "SELF_MODIFICATION_DENIED"
	ErrCodeAdminDeletionDenied    ErrorCode = "ADMIN_DELETION_DENIED"

	ErrCodeRequestNotFound     ErrorCode = "REQUEST_NOT_FOUND"
	ErrCodeQuotationNotFound   ErrorCode = "QUOTATION_NOT_FOUND"
	ErrCodeBudgetNotFound      ErrorCode = "BUDGET_NOT_FOUND"
	ErrCodeCategoryNotFound    ErrorCode = "CATEGORY_NOT_FOUND"
	ErrCodeSubcategoryNotFound ErrorCode = "SUBCATEGORY_NOT_FOUND"
	ErrCodeSettingNotFound     ErrorCode = "SETTING_NOT_FOUND"
	ErrCodeUserNotFound        ErrorCode = "USER_NOT_FOUND"
	ErrCodeFileNotFound        ErrorCode = "FILE_NOT_FOUND"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeUserInactive       ErrorCode = "USER_INACTIVE"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			messages := make([]string, len(validationErrors.Errors))
			for i, err := range validationErrors.Errors {
				messages[i] = err.Message
			}
			return strings.Join(messages, "; ")
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on Code so that errors.Is works against the package-level
// sentinels even when a fresh instance carries a different message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy so shared sentinels are never mutated.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

func (e *AppError) WithMessage(message string) *AppError {
	cp := *e
	cp.Message = message
	return &cp
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return NewValidationFieldsError([]ValidationError{
		{Field: field, Message: message, Code: string(code)},
	})
}

func NewValidationFieldsError(fieldErrors []ValidationError) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    ValidationErrors{Errors: fieldErrors},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewSettingLockedError reports a mutation rejected by a fund lock setting.
func NewSettingLockedError(setting string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       ErrCodeSettingLocked,
		Message:    fmt.Sprintf("%s is locked and cannot be modified", strings.ReplaceAll(setting, "_", " ")),
		StatusCode: http.StatusLocked,
		Details:    map[string]string{"setting": setting},
	}
}

var (
	ErrNotAuthorized          = NewForbiddenError("you are not authorized to perform this action", ErrCodeNotAuthorized)
	ErrInvalidProgressStep    = NewConflictError("invalid progress step", ErrCodeInvalidProgressStep)
	ErrInvalidRequestStatus   = NewConflictError("request cannot be changed in its current status", ErrCodeInvalidRequestStatus)
	ErrConcurrentModification = NewConflictError("record was modified by another user, reload and try again", ErrCodeConcurrentModification)
	ErrDuplicatePosition      = NewConflictError("position is already taken in this group", ErrCodeDuplicatePosition)
	ErrDuplicateEmail         = NewConflictError("email is already in use", ErrCodeDuplicateEmail)
	ErrSettingLocked          = NewSettingLockedError("setting")

	ErrMissingSelection = &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeMissingSelection,
		Message:    "please select a company before approving the quotation",
		StatusCode: http.StatusUnprocessableEntity,
	}

	ErrLastAdminProtection    = NewConflictError("cannot change the role of the last admin user", ErrCodeLastAdminProtection)
	ErrSelfModificationDenied = NewForbiddenError("you cannot perform this action on your own account", ErrCodeSelfModificationDenied)
	ErrAdminDeletionDenied    = NewForbiddenError("admin users cannot be deleted", ErrCodeAdminDeletionDenied)

	ErrRequestNotFound     = NewNotFoundError("request not found", ErrCodeRequestNotFound)
	ErrQuotationNotFound   = NewNotFoundError("quotation not found", ErrCodeQuotationNotFound)
	ErrBudgetNotFound      = NewNotFoundError("budget not found", ErrCodeBudgetNotFound)
	ErrCategoryNotFound    = NewNotFoundError("category not found", ErrCodeCategoryNotFound)
	ErrSubcategoryNotFound = NewNotFoundError("subcategory not found", ErrCodeSubcategoryNotFound)
	ErrSettingNotFound     = NewNotFoundError("setting not found", ErrCodeSettingNotFound)
	ErrUserNotFound        = NewNotFoundError("user not found", ErrCodeUserNotFound)
	ErrFileNotFound        = NewNotFoundError("file not found", ErrCodeFileNotFound)

	ErrInvalidCredentials = NewUnauthorizedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrUserInactive       = NewForbiddenError("User account is inactive", ErrCodeUserInactive)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
