package errors

import "net/http"

// 业务错误码，前三位即 HTTP 状态码
const (
	CodeSuccess        = 0
	CodeValidation     = 40001
	CodeNotFound       = 40401
	CodeConflict       = 40901
	CodePrecondition   = 41201
	CodeRateLimited    = 42901
	CodeUnknown        = 50001
	CodeInfrastructure = 50301
)

var codeMessages = map[int]string{
	CodeSuccess:        "success",
	CodeValidation:     "invalid request",
	CodeNotFound:       "resource not found",
	CodeConflict:       "state conflict",
	CodePrecondition:   "precondition failed",
	CodeRateLimited:    "too many requests",
	CodeUnknown:        "internal error",
	CodeInfrastructure: "service temporarily unavailable",
}

// HTTPStatus maps a business code to its HTTP status.
func HTTPStatus(code int) int {
	if code == CodeSuccess {
		return http.StatusOK
	}
	status := code / 100
	if http.StatusText(status) == "" {
		return http.StatusInternalServerError
	}
	return status
}

// CodeMessage returns the default message for a code.
func CodeMessage(code int) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	return codeMessages[CodeUnknown]
}
