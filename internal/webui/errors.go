package webui

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"datasync/internal/editor"
	"datasync/internal/mapping"
)

// Error codes carried in APIError.Code.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeOutOfRange       = "OUT_OF_RANGE"
	CodeUnknownField     = "UNKNOWN_FIELD"
	CodeDuplicateBinding = "DUPLICATE_BINDING"
	CodeNotify           = "NOTIFY_FAILED"
)

// APIError is the body of every non-2xx response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func respondWithError(c *gin.Context, status int, code, message string, details any) {
	c.JSON(status, APIError{Code: code, Message: message, Details: details})
}

// respondWithEditError maps an editor error onto a status code. Errors
// without a sentinel are bad input (an unknown encoding, an invalid
// derivation) and map to 400.
func respondWithEditError(c *gin.Context, err error, events []mapping.Event) {
	switch {
	case errors.Is(err, mapping.ErrOutOfRange):
		respondWithError(c, http.StatusBadRequest, CodeOutOfRange, err.Error(), nil)
	case errors.Is(err, mapping.ErrUnknownField):
		respondWithError(c, http.StatusNotFound, CodeUnknownField, err.Error(), nil)
	case errors.Is(err, mapping.ErrDuplicateBinding):
		respondWithError(c, http.StatusConflict, CodeDuplicateBinding, err.Error(), nil)
	case errors.Is(err, editor.ErrNotify):
		// The edit is applied; report what changed alongside the failure.
		respondWithError(c, http.StatusBadGateway, CodeNotify, err.Error(), gin.H{"events": events})
	default:
		respondWithError(c, http.StatusBadRequest, CodeValidation, err.Error(), nil)
	}
}
