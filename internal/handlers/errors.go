package handlers

import (
	"errors"
	"net/http"

	"github.com/gamevault/apiserver/internal/auth"
	"github.com/gamevault/apiserver/internal/services"
	"github.com/gamevault/apiserver/internal/store"
	"go.uber.org/zap"
)

// Machine-readable error codes returned alongside msg.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidPagination  = "INVALID_PAGINATION"
	CodeConflict           = "CONFLICT"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAdminRequired      = "ADMIN_REQUIRED"
	CodeNotFound           = "NOT_FOUND"
	CodeNotImplemented     = "NOT_IMPLEMENTED"
	CodeInternalError      = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Msg  string `json:"msg"`
	Code string `json:"code"`
}

type httpError struct {
	status  int
	code    string
	message string
}

// toHTTPError maps service, auth and store errors to a response. Unknown
// errors become a 500 whose message never includes the cause.
func toHTTPError(err error, notFound string) httpError {
	var (
		verr *services.ValidationError
		cerr *services.ConflictError
		perr *services.PermissionError
		aerr *auth.Error
	)
	switch {
	case errors.As(err, &verr):
		if verr.Kind == services.InvalidPagination {
			return httpError{http.StatusBadRequest, CodeInvalidPagination, verr.Message}
		}
		return httpError{http.StatusBadRequest, CodeInvalidRequest, verr.Message}
	case errors.As(err, &cerr):
		return httpError{http.StatusConflict, CodeConflict, cerr.Message}
	case errors.As(err, &perr):
		return httpError{http.StatusForbidden, CodeAdminRequired, "admin privileges required"}
	case errors.As(err, &aerr):
		switch aerr.Reason {
		case auth.ReasonExpired:
			return httpError{http.StatusUnauthorized, CodeTokenExpired, "token has expired"}
		case auth.ReasonInvalidCredentials:
			return httpError{http.StatusUnauthorized, CodeInvalidCredentials, "invalid credentials"}
		case auth.ReasonMissing:
			return httpError{http.StatusUnauthorized, CodeUnauthorized, "missing authorization token"}
		default:
			return httpError{http.StatusUnauthorized, CodeUnauthorized, "invalid token"}
		}
	case errors.Is(err, store.ErrNotFound):
		return httpError{http.StatusNotFound, CodeNotFound, notFound}
	case errors.Is(err, services.ErrStorageDisabled):
		return httpError{http.StatusNotImplemented, CodeNotImplemented, err.Error()}
	default:
		return httpError{http.StatusInternalServerError, CodeInternalError, "internal server error"}
	}
}

// writeServiceError writes the mapped error and logs anything unexpected.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error, notFound string) {
	he := toHTTPError(err, notFound)
	if he.status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, he.status, he.code, he.message)
}
