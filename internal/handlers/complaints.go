package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/control-eventos/apiserver/internal/logger"
	"github.com/control-eventos/apiserver/internal/services"
	"github.com/control-eventos/apiserver/internal/store"
	"github.com/control-eventos/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// ComplaintHandler provides complaint and suggestion endpoints.
type ComplaintHandler struct {
	complaintService *services.ComplaintService
	log              *logger.Logger
}

func NewComplaintHandler(complaintService *services.ComplaintService, log *logger.Logger) *ComplaintHandler {
	return &ComplaintHandler{complaintService: complaintService, log: log}
}

func ComplaintRouter(r chi.Router, handler *ComplaintHandler, userMiddleware func(http.Handler) http.Handler) {
	r.Use(userMiddleware)
	r.Post("/", handler.SubmitComplaint)
	r.Get("/me", handler.ListMyComplaints)
	r.With(RequireAdmin).Get("/", handler.ListComplaints)
	r.With(RequireAdmin).Patch("/{complaintID}", handler.UpdateComplaintStatus)
}

func (h *ComplaintHandler) SubmitComplaint(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())

	if !parseMultipartForm(w, r, maxComplaintFormBytes) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := ComplaintRequest{
		Type:    strings.TrimSpace(r.FormValue("type")),
		Subject: strings.TrimSpace(r.FormValue("subject")),
		Message: strings.TrimSpace(r.FormValue("message")),
	}
	if err := validateStruct(req); err != nil {
		writeRequestError(w, err)
		return
	}

	headers := r.MultipartForm.File["images"]
	if len(headers) > services.MaxComplaintImages {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d images are allowed", services.MaxComplaintImages))
		return
	}
	uploads := make([]services.Upload, 0, len(headers))
	for _, header := range headers {
		upload, err := openUpload(header)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		uploads = append(uploads, upload)
	}

	complaint, err := h.complaintService.Submit(r.Context(), user, services.NewComplaint{
		Type:    types.ComplaintType(req.Type),
		Subject: req.Subject,
		Message: req.Message,
		Images:  uploads,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidComplaint) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeInternalError(w, r, h.log, "failed to submit complaint", err)
		return
	}
	writeJSON(w, http.StatusCreated, complaint)
}

func (h *ComplaintHandler) ListMyComplaints(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	complaints, err := h.complaintService.Mine(r.Context(), user.Email)
	if err != nil {
		writeInternalError(w, r, h.log, "failed to list complaints", err)
		return
	}
	if complaints == nil {
		complaints = []types.Complaint{}
	}
	writeJSON(w, http.StatusOK, complaints)
}

func (h *ComplaintHandler) ListComplaints(w http.ResponseWriter, r *http.Request) {
	status := types.ComplaintStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	complaints, err := h.complaintService.List(r.Context(), status)
	if err != nil {
		if errors.Is(err, services.ErrInvalidStatus) {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		writeInternalError(w, r, h.log, "failed to list complaints", err)
		return
	}
	if complaints == nil {
		complaints = []types.Complaint{}
	}
	writeJSON(w, http.StatusOK, complaints)
}

func (h *ComplaintHandler) UpdateComplaintStatus(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())

	id, err := parseIDParam(r, "complaintID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ComplaintStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	complaint, err := h.complaintService.UpdateStatus(r.Context(), user, id, types.ComplaintStatus(req.Status), req.AdminResponse)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "complaint not found")
		case errors.Is(err, services.ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, "invalid status")
		case errors.Is(err, services.ErrForbidden):
			writeError(w, http.StatusForbidden, "forbidden")
		default:
			writeInternalError(w, r, h.log, "failed to update complaint", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, complaint)
}

type ComplaintRequest struct {
	Type    string `json:"type" validate:"required,oneof=queja sugerencia"`
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

type ComplaintStatusRequest struct {
	Status        string `json:"status" validate:"required,oneof=pendiente en_revision resuelto cerrado"`
	AdminResponse string `json:"admin_response" validate:"max=5000"`
}
