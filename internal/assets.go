package internal

import (
	"fmt"
	"net/http"
	"strings"

	"asset-custody-api/internal/auth"
	"asset-custody-api/internal/models"

	"github.com/go-chi/chi/v5"
)

// caller returns the authenticated principal, writing a 401 if there is none
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, auth.ErrorResponse{Error: "Authentication required", Code: "AUTHENTICATION_REQUIRED"})
	}
	return p, ok
}

// listAssets handles asset listing with filters and pagination
func (s *Server) listAssets(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	params := parseListParams(r)
	query := r.URL.Query()

	var filter models.AssetFilter
	if v := strings.TrimSpace(query.Get("category")); v != "" {
		c, err := models.ParseCategory(v)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		filter.Category = &c
	}
	if v := strings.TrimSpace(query.Get("status")); v != "" {
		st, err := models.ParseStatus(v)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		filter.Status = &st
	}
	if v := strings.TrimSpace(query.Get("holder_id")); v != "" {
		filter.HolderID = &v
	}

	assets, err := s.Engine.ListAssets(r.Context(), caller, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sendListResponse(w, assets, params)
}

// getAsset handles getting a single asset by ID
func (s *Server) getAsset(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	detail, err := s.Engine.GetAsset(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// createAsset handles creating a new asset
func (s *Server) createAsset(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req models.CreateAssetRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	asset, err := s.Engine.CreateAsset(r.Context(), caller, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/assets/%s", asset.ID))
	writeJSON(w, http.StatusCreated, asset)
}

// updateAsset handles partial updates of an asset
func (s *Server) updateAsset(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req models.UpdateAssetRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	asset, err := s.Engine.UpdateAsset(r.Context(), caller, chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

// deleteAsset handles deleting an asset and its ledger records
func (s *Server) deleteAsset(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.Engine.DeleteAsset(r.Context(), caller, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
