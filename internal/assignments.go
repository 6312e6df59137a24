package internal

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"asset-custody-api/internal/lifecycle"
	"asset-custody-api/internal/models"

	"github.com/go-chi/chi/v5"
)

// assignAsset hands an asset to the holder named in the body
func (s *Server) assignAsset(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req models.AssignRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.Engine.Assign(r.Context(), caller, chi.URLParam(r, "id"), strings.TrimSpace(req.HolderID))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type transitionFunc func(ctx context.Context, caller models.Principal, assetID string) (*lifecycle.TransitionResult, error)

// transitionHandler adapts a body-less engine transition to a handler
func (s *Server) transitionHandler(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := s.caller(w, r)
		if !ok {
			return
		}
		res, err := fn(r.Context(), caller, chi.URLParam(r, "id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) unassignAsset(w http.ResponseWriter, r *http.Request) {
	s.transitionHandler(s.Engine.Unassign)(w, r)
}

func (s *Server) returnAsset(w http.ResponseWriter, r *http.Request) {
	s.transitionHandler(s.Engine.ReturnAsset)(w, r)
}

func (s *Server) maintenanceAsset(w http.ResponseWriter, r *http.Request) {
	s.transitionHandler(s.Engine.SetMaintenance)(w, r)
}

func (s *Server) retireAsset(w http.ResponseWriter, r *http.Request) {
	s.transitionHandler(s.Engine.Retire)(w, r)
}

func (s *Server) restoreAsset(w http.ResponseWriter, r *http.Request) {
	s.transitionHandler(s.Engine.Restore)(w, r)
}

// holderAssets lists what a holder currently has
func (s *Server) holderAssets(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	holdings, err := s.Engine.CurrentHolderView(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sendListResponse(w, holdings, parseListParams(r))
}

// holderHistory lists what a holder had and gave back
func (s *Server) holderHistory(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	holdings, err := s.Engine.HistoryView(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sendListResponse(w, holdings, parseListParams(r))
}

// listAssignments reports custody intervals overlapping [start, end]
func (s *Server) listAssignments(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	start, err := parseTimeParam("start", query.Get("start"), false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	end, err := parseTimeParam("end", query.Get("end"), true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	recs, err := s.Engine.AssignedBetween(r.Context(), caller, start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sendListResponse(w, recs, parseListParams(r))
}

// parseTimeParam accepts RFC3339 or YYYY-MM-DD. A bare date used as a
// range end covers the whole day.
func parseTimeParam(name, value string, endOfDay bool) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", models.ErrInvalidArgument, name)
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be RFC3339 or YYYY-MM-DD", models.ErrInvalidArgument, name)
	}
	if endOfDay {
		d = d.Add(24*time.Hour - time.Nanosecond)
	}
	return d, nil
}
