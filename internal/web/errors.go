package web

// errors.go turns handler errors into JSON responses.
//
// The technical error is logged with the request ID; the client gets the
// user message, action and code from core.MapError.

import (
	"encoding/csv"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/supabase-csv/internal/core"
	"github.com/JonMunkholm/supabase-csv/internal/logging"
)

// errNoFile is returned when a multipart upload has no "file" field.
var errNoFile = errors.New("no file provided")

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user-facing form.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	writeJSON(w, statusCode, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// statusFor picks the HTTP status for a conversion error.
func statusFor(err error) int {
	var (
		maxBytes *http.MaxBytesError
		parseErr *csv.ParseError
	)

	switch {
	case errors.As(err, &maxBytes), strings.Contains(err.Error(), "request body too large"):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoFile):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTooManyConversions):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrEmptyFile),
		errors.Is(err, core.ErrTooManyFields),
		errors.Is(err, core.ErrUnsupportedEncoding),
		errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
