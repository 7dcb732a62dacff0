package server

import (
	"fmt"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/jonathan/jobstage/internal/apperr"
	"github.com/jonathan/jobstage/internal/scrape"
	"github.com/jonathan/jobstage/internal/sources"
)

// ScrapeResponse is returned by the scrape endpoints.
type ScrapeResponse struct {
	Reports []*scrape.Report `json:"reports"`
	Error   string           `json:"error,omitempty"`
}

// handleListSources lists the registered and enabled sources.
func (s *Server) handleListSources(w http.ResponseWriter, _ *http.Request) {
	enabled, _ := s.sources.Select(s.enabled)
	tags := make([]string, 0, len(enabled))
	for _, src := range enabled {
		tags = append(tags, src.Tag())
	}
	s.jsonResponse(w, http.StatusOK, map[string][]string{
		"registered": s.sources.Tags(),
		"enabled":    tags,
	})
}

// handleScrapeAll runs every enabled source concurrently. Partial failure
// still answers 200; each report carries its own state and error.
func (s *Server) handleScrapeAll(w http.ResponseWriter, r *http.Request) {
	srcs, err := s.sources.Select(s.enabled)
	if err != nil {
		s.writeError(w, apperr.Internal("enabled sources are misconfigured", err))
		return
	}

	reports, err := s.scraper.RunAll(r.Context(), srcs)
	resp := ScrapeResponse{Reports: reports}
	if err != nil {
		resp.Error = "one or more sources failed"
		s.logger.Warn("scrape run had failures", zap.Error(err))
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleScrapeSource runs one source and answers once it finishes.
func (s *Server) handleScrapeSource(w http.ResponseWriter, r *http.Request) {
	src, ok := s.lookupSource(w, r)
	if !ok {
		return
	}

	report, err := s.scraper.Run(r.Context(), src)
	if err != nil {
		s.logger.Warn("scrape run failed", zap.String("source", src.Tag()), zap.Error(err))
		s.jsonResponse(w, HTTPStatus(err), ScrapeResponse{
			Reports: []*scrape.Report{report},
			Error:   PublicMessage(err),
		})
		return
	}
	s.jsonResponse(w, http.StatusOK, ScrapeResponse{Reports: []*scrape.Report{report}})
}

// handleScrapeStream runs one source, streaming progress events over SSE.
// Closing the connection cancels the run; what was gathered is still staged.
func (s *Server) handleScrapeStream(w http.ResponseWriter, r *http.Request) {
	src, ok := s.lookupSource(w, r)
	if !ok {
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	orch := s.scraper.WithProgress(func(event scrape.ProgressEvent) {
		if err := sse.WriteEvent("progress", event); err != nil {
			s.logger.Debug("failed to write SSE event", zap.Error(err))
		}
	})

	report, err := orch.Run(r.Context(), src)
	if err != nil {
		sse.WriteError(PublicMessage(err))
		return
	}
	sse.WriteComplete(report)
}

func (s *Server) lookupSource(w http.ResponseWriter, r *http.Request) (sources.Source, bool) {
	tag := r.PathValue("source")
	src, err := s.sources.Get(tag)
	if err != nil {
		s.writeError(w, apperr.NotFound(err.Error(), err))
		return nil, false
	}
	if len(s.enabled) > 0 && !slices.Contains(s.enabled, tag) {
		s.writeError(w, apperr.NotFound(fmt.Sprintf("source %q is not enabled", tag), nil))
		return nil, false
	}
	return src, true
}
