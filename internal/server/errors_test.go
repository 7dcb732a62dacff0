package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/jonathan/jobstage/internal/apperr"
)

func TestErrValidation(t *testing.T) {
	err := &ErrValidation{Field: "jobId", Message: "uuid"}
	assert.Equal(t, "validation error: jobId - uuid", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", &ErrValidation{Field: "f", Message: "m"}, http.StatusBadRequest},
		{"not found", apperr.NotFound("missing", nil), http.StatusNotFound},
		{"conflict", apperr.Conflict("dup", nil), http.StatusConflict},
		{"invalid input", apperr.InvalidInput("bad", nil), http.StatusBadRequest},
		{"unavailable", apperr.Unavailable("down", nil), http.StatusServiceUnavailable},
		{"internal", apperr.Internal("boom", nil), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("ctx: %w", apperr.Conflict("dup", nil)), http.StatusConflict},
		{"plain", errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "dup", PublicMessage(apperr.Conflict("dup", errors.New("pq: unique"))))
	assert.Equal(t, "internal server error", PublicMessage(apperr.Internal("db exploded", nil)))
	assert.Equal(t, "internal server error", PublicMessage(errors.New("secret detail")))
	assert.Equal(t, "validation error: a - b", PublicMessage(&ErrValidation{Field: "a", Message: "b"}))
}

func TestValidationError(t *testing.T) {
	v := validator.New()
	err := v.Struct(&ImportRequest{JobID: "nope"})
	ve := validationError(err)
	assert.Equal(t, "JobID", ve.Field)
	assert.Equal(t, "uuid", ve.Message)

	ve = validationError(errors.New("odd"))
	assert.Equal(t, "request", ve.Field)
}
