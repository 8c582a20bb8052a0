package server

import (
	"net/http"

	"github.com/jonathan/ai-visibility/internal/artifacts"
	"github.com/jonathan/ai-visibility/internal/report"
	"github.com/jonathan/ai-visibility/internal/types"
)

// handleListReports returns every test run report, most recent first.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	list, err := s.reports.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if list == nil {
		list = []types.TestRunReport{}
	}
	s.jsonResponse(w, http.StatusOK, list)
}

// handleGetReport returns one aggregated report.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.reports.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, rep)
}

// handleReportHTML serves a provider's HTML report inline.
func (s *Server) handleReportHTML(w http.ResponseWriter, r *http.Request) {
	d, err := s.reports.HTML(r.Context(), r.PathValue("id"), r.URL.Query().Get("provider"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeDownload(w, d, false)
}

// handleReportResponses returns the parsed Q/A rows of a report.
func (s *Server) handleReportResponses(w http.ResponseWriter, r *http.Request) {
	rows, err := s.reports.Responses(r.Context(), r.PathValue("id"), r.URL.Query().Get("provider"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if rows == nil {
		rows = []artifacts.Row{}
	}
	s.jsonResponse(w, http.StatusOK, rows)
}

// handleDownloadQueries serves the generated query file.
func (s *Server) handleDownloadQueries(w http.ResponseWriter, r *http.Request) {
	d, err := s.reports.Queries(r.Context(), r.PathValue("id"), r.URL.Query().Get("provider"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeDownload(w, d, true)
}

// handleDownloadResponses exports every provider's responses as csv
// (default) or json.
func (s *Server) handleDownloadResponses(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = report.FormatCSV
	}
	d, err := s.reports.Export(r.Context(), r.PathValue("id"), format)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeDownload(w, d, true)
}

// handleDeleteReport removes a report's artifacts. In remote mode the
// backend owns the artifacts and the request is forwarded.
func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.runs.RemoteMode() {
		if err := s.runs.Remote().Backend().DeleteReport(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}
		s.jsonResponse(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	deleted, err := s.resolver.DeleteReport(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success":      true,
		"filesDeleted": len(deleted),
		"files":        deleted,
	})
}
