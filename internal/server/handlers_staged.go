package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/jobstage/internal/posting"
)

// ImportRequest is the body of POST /staged/import.
type ImportRequest struct {
	JobID    string `json:"jobId" validate:"required,uuid"`
	Category string `json:"category,omitempty" validate:"omitempty,max=100"`
}

// RejectRequest is the body of POST /staged/reject.
type RejectRequest struct {
	JobID string `json:"jobId" validate:"required,uuid"`
}

// StagedListResponse is returned by GET /staged.
type StagedListResponse struct {
	Postings []posting.Staged `json:"postings"`
	Count    int              `json:"count"`
}

func (s *Server) handleListStaged(w http.ResponseWriter, r *http.Request) {
	staged, err := s.moderation.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if staged == nil {
		staged = []posting.Staged{}
	}
	s.jsonResponse(w, http.StatusOK, StagedListResponse{Postings: staged, Count: len(staged)})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !s.decode(w, r, &req) {
		return
	}

	id, err := uuid.Parse(req.JobID)
	if err != nil {
		s.writeError(w, &ErrValidation{Field: "jobId", Message: "uuid"})
		return
	}

	job, err := s.moderation.Import(r.Context(), id, req.Category)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"success": true, "job": job})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if !s.decode(w, r, &req) {
		return
	}

	id, err := uuid.Parse(req.JobID)
	if err != nil {
		s.writeError(w, &ErrValidation{Field: "jobId", Message: "uuid"})
		return
	}

	if err := s.moderation.Reject(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]bool{"success": true})
}

// decode reads a JSON body into dst and validates it. It writes the error
// response and returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, &ErrValidation{Field: "body", Message: "invalid JSON"})
		return false
	}
	if err := s.validator.Struct(dst); err != nil {
		s.writeError(w, validationError(err))
		return false
	}
	return true
}
