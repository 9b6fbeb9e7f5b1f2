package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	dErrors "eshop/pkg/domain-errors"
	"eshop/pkg/requestcontext"
)

const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"

	genericServerMessage = "Something went wrong!"
)

// ErrorResponse is the envelope for every failed request.
// Error, Code and Stack are only populated in development mode.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError centralizes domain error translation to HTTP responses.
// 4xx responses expose the domain message; 5xx responses hide it unless the
// request carries the development flag.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := dErrors.CodeInternal
	message := ""

	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		code = domainErr.Code
		status = DomainCodeToHTTPStatus(code)
		message = domainErr.Error()
	}

	resp := ErrorResponse{Status: StatusFail, Message: message}
	if status >= http.StatusInternalServerError {
		resp.Status = StatusError
		resp.Message = genericServerMessage
	}

	if r != nil && requestcontext.Development(r.Context()) {
		if err != nil {
			resp.Error = err.Error()
			if resp.Message == genericServerMessage {
				resp.Message = err.Error()
			}
		}
		resp.Code = string(code)
		resp.Stack = string(debug.Stack())
	}

	WriteJSON(w, status, resp)
}

// NotFound answers routes that no handler matched.
func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, ErrorResponse{
		Status:  "failed",
		Message: fmt.Sprintf("Cannot find %s on this server!", r.URL.Path),
	})
}

// MethodNotAllowed answers routes that exist under a different verb.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Status:  StatusFail,
		Message: fmt.Sprintf("Method %s is not allowed on %s", r.Method, r.URL.Path),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeMalformedField:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
