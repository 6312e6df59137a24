package handlers

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"asset-custody-api/internal/auth"
	"asset-custody-api/internal/models"
	"asset-custody-api/pkg/importer"
)

// ImportsHandler handles Excel import operations
type ImportsHandler struct {
	Creator    importer.AssetCreator
	MaxBytes   int64
	DefaultMap string
	Logger     *zap.Logger
}

// NewImportsHandler creates a new imports handler
func NewImportsHandler(creator importer.AssetCreator, mappingPath string, log *zap.Logger) *ImportsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ImportsHandler{
		Creator:    creator,
		MaxBytes:   20 << 20, // 20 MB
		DefaultMap: mappingPath,
		Logger:     log.Named("imports"),
	}
}

// UploadExcel handles Excel file uploads for asset import
func (h *ImportsHandler) UploadExcel(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, auth.ErrorResponse{Error: "Authentication required", Code: "AUTHENTICATION_REQUIRED"})
		return
	}

	// Limit body size
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)

	// Require multipart
	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		http.Error(w, "content-type must be multipart/form-data", http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		http.Error(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	dryRun := r.FormValue("dry_run") == "true"
	maxErrors := 50
	if v := r.FormValue("max_errors"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "max_errors must be a positive integer", http.StatusBadRequest)
			return
		}
		maxErrors = n
	}

	// File
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !isXLSX(header) {
		http.Error(w, "only .xlsx files are accepted", http.StatusBadRequest)
		return
	}

	sum, impErr := importer.ImportExcel(r.Context(), h.Creator, file, importer.ImportOptions{
		Caller:      caller,
		MappingPath: h.DefaultMap,
		DryRun:      dryRun,
		MaxErrors:   maxErrors,
	})
	if errors.Is(impErr, models.ErrForbidden) {
		writeJSON(w, http.StatusForbidden, auth.ErrorResponse{Error: impErr.Error(), Code: models.Kind(impErr)})
		return
	}
	if impErr != nil {
		h.Logger.Warn("excel import failed",
			zap.String("file", header.Filename),
			zap.String("caller", caller.ID),
			zap.Int("errors", sum.Errors),
			zap.Error(impErr))
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "IMPORT_FAILED",
			"details": impErr.Error(),
			"data":    sum, // partial results up to the failure
		})
		return
	}

	h.Logger.Info("excel import finished",
		zap.String("file", header.Filename),
		zap.String("caller", caller.ID),
		zap.Bool("dry_run", sum.DryRun),
		zap.Int("inserted", sum.Inserted),
		zap.Int("skipped", sum.Skipped),
		zap.Int("errors", sum.Errors))

	writeJSON(w, http.StatusOK, map[string]any{
		"data": sum,
		"meta": map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   "1.0.0",
		},
	})
}

// isXLSX checks if the uploaded file is an Excel .xlsx file
func isXLSX(h *multipart.FileHeader) bool {
	name := strings.ToLower(h.Filename)
	return strings.HasSuffix(name, ".xlsx")
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
