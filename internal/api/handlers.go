package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/fehu/internal/apperr"
	"github.com/starford/fehu/internal/formservice"
	"github.com/starford/fehu/internal/mailer"
	"github.com/starford/fehu/internal/models"
	"github.com/starford/fehu/internal/tabular"
)

const maxUploadBytes = 20 << 20 // 20 MB

// Handler holds API route handlers.
type Handler struct {
	svc  *formservice.Service
	mail mailer.Sender
}

// NewHandler creates a new Handler.
func NewHandler(svc *formservice.Service, mail mailer.Sender) *Handler {
	return &Handler{svc: svc, mail: mail}
}

// CreateForm handles POST /api/forms (multipart: title, file).
func (h *Handler) CreateForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title is required"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	format, err := tabular.FormatFromFilename(header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
		return
	}

	def, err := h.svc.CreateFormFromUpload(r.Context(), title, header.Filename, data, format)
	if err != nil {
		if errors.Is(err, apperr.ErrFormat) {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		} else {
			slog.Error("create form failed", slog.String("title", title), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

// ListForms handles GET /api/forms.
func (h *Handler) ListForms(w http.ResponseWriter, r *http.Request) {
	forms, err := h.svc.ListForms(r.Context())
	if err != nil {
		slog.Error("list forms failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if forms == nil {
		forms = []*models.FormDefinition{}
	}
	writeJSON(w, http.StatusOK, FormListResponse{Forms: forms, Total: len(forms)})
}

// GetForm handles GET /api/forms/{id}.
func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	def, err := h.svc.GetForm(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("link invalid or expired"))
		} else {
			slog.Error("get form failed", slog.String("form_id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// CreateSubmission handles POST /api/forms/{id}/submissions.
func (h *Handler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	id := chi.URLParam(r, "id")

	var req CreateSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	rec, err := h.svc.Submit(r.Context(), id, req.Values)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("link invalid or expired"))
		case errors.Is(err, apperr.ErrValidation):
			writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		default:
			slog.Error("submit failed", slog.String("form_id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// ListResponses handles GET /api/forms/{id}/submissions.
func (h *Handler) ListResponses(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	recs, err := h.svc.ListResponses(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("link invalid or expired"))
		} else {
			slog.Error("list responses failed", slog.String("form_id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if recs == nil {
		recs = []*models.SubmissionRecord{}
	}
	writeJSON(w, http.StatusOK, ResponseListResponse{Responses: recs, Total: len(recs)})
}

// Export handles GET /api/forms/{id}/export?format=csv|xlsx.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	format := tabular.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = tabular.FormatCSV
	}
	if format != tabular.FormatCSV && format != tabular.FormatXLSX {
		writeJSON(w, http.StatusBadRequest, errorBody("format must be csv or xlsx"))
		return
	}

	data, err := h.svc.Export(r.Context(), id, format)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("link invalid or expired"))
		} else {
			slog.Error("export failed", slog.String("form_id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}

	contentType := "text/csv"
	if format == tabular.FormatXLSX {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "responses-"+id+"."+string(format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// SourceFile handles GET /api/forms/{id}/source.
func (h *Handler) SourceFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, name, err := h.svc.SourceFile(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("source download failed", slog.String("form_id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Invite handles POST /api/forms/{id}/invitations.
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	id := chi.URLParam(r, "id")

	var req InvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if len(req.Recipients) == 0 || strings.TrimSpace(req.Link) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("recipients and link are required"))
		return
	}

	def, err := h.svc.GetForm(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("link invalid or expired"))
		} else {
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}

	inv := mailer.Invitation{FormTitle: def.Title, Link: req.Link}
	results := make([]InvitationResult, 0, len(req.Recipients))
	sent := 0
	for _, rcpt := range req.Recipients {
		res := InvitationResult{Recipient: rcpt}
		if err := h.mail.Send(r.Context(), rcpt, inv); err != nil {
			slog.Warn("invitation failed", slog.String("form_id", id), slog.String("recipient", rcpt), slog.String("error", err.Error()))
			res.Error = err.Error()
		} else {
			res.Sent = true
			sent++
		}
		results = append(results, res)
	}

	status := http.StatusOK
	if sent == 0 {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, InvitationResponse{Results: results})
}
