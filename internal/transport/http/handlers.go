// Package http exposes the import pipeline over a chi-routed REST API.
package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"finsheet/internal/errors"
	"finsheet/internal/learning"
	"finsheet/internal/operations"
	"finsheet/internal/services"
	"finsheet/pkg/contracts/domain"
)

// Handler serves the import API.
type Handler struct {
	logger  *slog.Logger
	service *services.ImportService
	tempDir string
}

// NewHandler creates the API handler. Uploaded workbooks are staged in
// tempDir before extraction.
func NewHandler(logger *slog.Logger, service *services.ImportService, tempDir string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Handler{
		logger:  logger.With(slog.String("component", "http_handler")),
		service: service,
		tempDir: tempDir,
	}
}

// Routes mounts all API endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/import", h.handleImport)
	r.Post("/api/import/sheet", h.handleImportSheet)
	r.Post("/api/import/batch", h.handleImportBatch)
	r.Post("/api/incremental", h.handleIncremental)
	r.Get("/api/templates", h.handleListTemplates)
	r.Delete("/api/templates/{id}", h.handleDeleteTemplate)
	r.Post("/api/corrections", h.handleSaveCorrection)
	r.Get("/api/learning/export", h.handleExportLearning)
	r.Post("/api/learning/import", h.handleImportLearning)
	r.Get("/api/health", h.handleHealth)
}

// handleImport accepts a multipart workbook upload plus JSON-encoded
// options in the "options" field.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		h.renderError(w, r, errors.ErrInvalidRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.renderError(w, r, errors.ErrInvalidRequest)
		return
	}
	defer file.Close()

	var options operations.ImportOptions
	if raw := r.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &options); err != nil {
			h.renderError(w, r, errors.ErrInvalidRequest)
			return
		}
	}

	path, err := h.stageUpload(file, header.Filename)
	if err != nil {
		h.logger.Error("staging upload", slog.String("error", err.Error()))
		h.renderError(w, r, errors.ErrInternalServer)
		return
	}
	defer os.Remove(path)

	outcome, err := h.service.ImportFile(r.Context(), path, options)
	h.renderOutcome(w, r, outcome, err)
}

// sheetImportRequest is the JSON body for importing an externally
// extracted cell matrix.
type sheetImportRequest struct {
	Sheet   *domain.Sheet            `json:"sheet"`
	Options operations.ImportOptions `json:"options"`
}

func (h *Handler) handleImportSheet(w http.ResponseWriter, r *http.Request) {
	var req sheetImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Sheet == nil {
		h.renderError(w, r, errors.ErrInvalidRequest)
		return
	}

	outcome, err := h.service.ImportSheet(r.Context(), req.Sheet, req.Options)
	h.renderOutcome(w, r, outcome, err)
}

type batchImportRequest struct {
	Paths    []string                 `json:"paths"`
	Strategy string                   `json:"strategy"`
	Options  operations.ImportOptions `json:"options"`
}

func (h *Handler) handleImportBatch(w http.ResponseWriter, r *http.Request) {
	var req batchImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Paths) == 0 {
		h.renderError(w, r, errors.ErrInvalidRequest)
		return
	}

	result, err := h.service.ImportBatch(r.Context(), req.Paths, req.Strategy, req.Options)
	if err != nil {
		h.renderImportError(w, r, err, nil)
		return
	}
	render.JSON(w, r, result)
}

type incrementalRequest struct {
	Incoming domain.RecordSet `json:"incoming"`
	Existing domain.RecordSet `json:"existing"`
	Strategy string           `json:"strategy"`
}

func (h *Handler) handleIncremental(w http.ResponseWriter, r *http.Request) {
	var req incrementalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.renderError(w, r, errors.ErrInvalidRequest)
		return
	}

	result, err := h.service.IncrementalUpdate(r.Context(), req.Incoming, req.Existing, req.Strategy)
	if err != nil {
		h.renderImportError(w, r, err, nil)
		return
	}
	render.JSON(w, r, result)
}

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.service.ListTemplates(r.Context())
	if err != nil {
		h.logger.Error("listing templates", slog.String("error", err.Error()))
		h.renderError(w, r, errors.ErrInternalServer)
		return
	}
	render.JSON(w, r, map[string]interface{}{"templates": templates})
}

func (h *Handler) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.renderError(w, r, errors.ErrTemplateNotFound)
		return
	}
	if err := h.service.DeleteTemplate(r.Context(), id); err != nil {
		h.logger.Error("deleting template", slog.String("id", id), slog.String("error", err.Error()))
		h.renderError(w, r, errors.ErrInternalServer)
		return
	}
	render.NoContent(w, r)
}

type correctionRequest struct {
	Sheet   *domain.Sheet          `json:"sheet"`
	Mapping domain.MappingEnvelope `json:"mapping"`
	Note    string                 `json:"note"`
}

func (h *Handler) handleSaveCorrection(w http.ResponseWriter, r *http.Request) {
	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Sheet == nil {
		h.renderError(w, r, errors.ErrInvalidRequest)
		return
	}
	mapping, err := req.Mapping.Decode()
	if err != nil {
		h.renderError(w, r, errors.ErrInvalidRequest)
		return
	}
	if err := h.service.SaveCorrection(r.Context(), req.Sheet, mapping, req.Note); err != nil {
		h.logger.Error("saving correction", slog.String("error", err.Error()))
		h.renderError(w, r, errors.ErrInternalServer)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]bool{"success": true})
}

func (h *Handler) handleExportLearning(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.service.ExportLearning(r.Context())
	if err != nil {
		h.logger.Error("exporting learning corpus", slog.String("error", err.Error()))
		h.renderError(w, r, errors.ErrInternalServer)
		return
	}
	render.JSON(w, r, bundle)
}

func (h *Handler) handleImportLearning(w http.ResponseWriter, r *http.Request) {
	var bundle learning.Bundle
	if err := json.NewDecoder(r.Body).Decode(&bundle); err != nil {
		h.renderError(w, r, errors.ErrInvalidRequest)
		return
	}
	if err := h.service.ImportLearning(r.Context(), &bundle); err != nil {
		h.renderError(w, r, errors.NewAPIError(http.StatusBadRequest, "BUNDLE_REJECTED", err.Error()))
		return
	}
	render.JSON(w, r, map[string]bool{"success": true})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "healthy"})
}

// renderOutcome renders a successful or recoverably failed import.
func (h *Handler) renderOutcome(w http.ResponseWriter, r *http.Request, outcome *services.ImportOutcome, err error) {
	if err != nil {
		h.renderImportError(w, r, err, nil)
		return
	}
	if outcome.Result != nil && !outcome.Result.Success || len(outcome.Proposals) > 0 {
		render.Status(r, http.StatusUnprocessableEntity)
	}
	render.JSON(w, r, outcome)
}

func (h *Handler) renderImportError(w http.ResponseWriter, r *http.Request, err error, proposals []errors.RecoveryProposal) {
	ie := errors.AsImportError(err)
	h.renderError(w, r, errors.APIErrorFrom(ie, proposals))
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, apiErr *errors.APIError) {
	if err := render.Render(w, r, errors.NewErrorResponse(apiErr)); err != nil {
		h.logger.Error("rendering error response", slog.String("error", err.Error()))
	}
}

// stageUpload copies an uploaded workbook into the staging directory so
// the extractor can open it by path.
func (h *Handler) stageUpload(file io.Reader, name string) (string, error) {
	staged, err := os.CreateTemp(h.tempDir, "upload-*-"+filepath.Base(name))
	if err != nil {
		return "", err
	}
	defer staged.Close()
	if _, err := io.Copy(staged, file); err != nil {
		os.Remove(staged.Name())
		return "", err
	}
	return staged.Name(), nil
}
