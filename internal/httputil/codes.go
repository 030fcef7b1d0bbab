package httputil

// Machine-readable error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequestBody = "invalid_request_body"
	CodeValidationFailed   = "validation_failed"
	CodeInvalidUserID      = "invalid_user_id"

	CodeEmailAlreadyExists = "email_already_exists"
	CodeInvalidCredentials = "invalid_credentials"
	CodeAccountUnavailable = "account_unavailable"

	CodeMissingAuth       = "missing_auth"
	CodeInvalidAuthHeader = "invalid_auth_header"
	CodeInvalidToken      = "invalid_token"
	CodeForbidden         = "forbidden"
	CodeUserInvalid       = "user_invalid"

	CodeTooManyRequests = "too_many_requests"
	CodeInternalError   = "internal_error"
)
