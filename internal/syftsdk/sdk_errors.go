package syftsdk

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

var (
	ErrNoRefreshToken = errors.New("sdk: refresh token missing")
	ErrNoServerURL    = errors.New("sdk: server url missing")
	ErrInvalidEmail   = errors.New("sdk: invalid email")
	ErrInvalidOTP     = errors.New("sdk: invalid otp")
	ErrNoPermissions  = errors.New("sdk: no permissions")
	ErrFileNotFound   = errors.New("sdk: file not found")
)

// Error codes returned by the server in API error payloads.
const (
	CodeInvalidRequest = "E_INVALID_REQUEST"
	CodeRateLimited    = "E_RATE_LIMITED"
	CodeInternalError  = "E_INTERNAL_ERROR"
	CodeAccessDenied   = "E_ACCESS_DENIED"
	CodeUnknownError   = "E_UNKNOWN_ERR"

	CodeAuthInvalidCredentials    = "E_AUTH_INVALID_CREDENTIALS"
	CodeAuthTokenGenerationFailed = "E_AUTH_TOKEN_GENERATION_FAILED"
	CodeAuthOTPVerificationFailed = "E_AUTH_OTP_VERIFICATION_FAILED"
	CodeAuthTokenRefreshFailed    = "E_AUTH_TOKEN_REFRESH_FAILED"
	CodeAuthNotificationFailed    = "E_AUTH_NOTIFICATION_FAILED"

	CodeDatasiteNotFound    = "E_DATASITE_NOT_FOUND"
	CodeDatasiteInvalidPath = "E_DATASITE_INVALID_PATH"

	CodeBlobNotFound     = "E_BLOB_NOT_FOUND"
	CodeBlobListFailed   = "E_BLOB_LIST_OPERATION_FAILED"
	CodeBlobPutFailed    = "E_BLOB_PUT_OPERATION_FAILED"
	CodeBlobGetFailed    = "E_BLOB_GET_OPERATION_FAILED"
	CodeBlobDeleteFailed = "E_BLOB_DELETE_OPERATION_FAILED"

	CodeACLUpdateFailed = "E_ACL_UPDATE_FAILED"
)

// SDKError is an error carrying a server-assigned code alongside the
// human-readable message.
type SDKError interface {
	error
	ErrorCode() string
	ErrorMessage() string
}

type BaseError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *BaseError) ErrorCode() string    { return e.Code }
func (e *BaseError) ErrorMessage() string { return e.Message }

// APIError is the error payload shape of the SyftBox HTTP API.
type APIError struct {
	BaseError
}

func NewAPIError(code, message string) *APIError {
	return &APIError{BaseError{Code: code, Message: message}}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
}

var _ SDKError = (*APIError)(nil)

// PresignedURLError is returned for failures on presigned blob URLs, which
// come from the storage backend rather than the API itself.
type PresignedURLError struct {
	BaseError
}

func NewPresignedURLError(code, message string) *PresignedURLError {
	return &PresignedURLError{BaseError{Code: code, Message: message}}
}

func (e *PresignedURLError) Error() string {
	return fmt.Sprintf("presigned url error: %s - %s", e.Code, e.Message)
}

var _ SDKError = (*PresignedURLError)(nil)

// handleAPIError folds transport errors and API error payloads into one
// error value for the caller.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s %w", operation, requestErr)
	}

	if resp.IsErrorState() {
		if err, ok := resp.ErrorResult().(*APIError); ok {
			return fmt.Errorf("%s %w", operation, err)
		}
		return fmt.Errorf("api error: %s %s", operation, resp.Dump())
	}

	return nil
}
