package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jonathan/jobstage/internal/apperr"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var ve *ErrValidation
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}

	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show a client.
func PublicMessage(err error) string {
	var ve *ErrValidation
	if errors.As(err, &ve) {
		return ve.Error()
	}
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Kind != apperr.KindInternal {
		return ae.Message
	}
	return "internal server error"
}

// writeError maps err to a status and JSON body. Server-side failures are
// logged with their stack.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		fields := []zap.Field{zap.Error(err), zap.Int("status", status)}
		var ae *apperr.Error
		if errors.As(err, &ae) && len(ae.Stack) > 0 {
			fields = append(fields, zap.ByteString("stack", ae.Stack))
		}
		s.logger.Error("request failed", fields...)
	}
	s.errorResponse(w, status, PublicMessage(err))
}

// validationError converts validator output to an ErrValidation for the
// first failing field.
func validationError(err error) *ErrValidation {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &ErrValidation{Field: verrs[0].Field(), Message: verrs[0].Tag()}
	}
	return &ErrValidation{Field: "request", Message: err.Error()}
}
