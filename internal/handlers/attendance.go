package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/control-eventos/apiserver/internal/logger"
	"github.com/control-eventos/apiserver/internal/services"
	"github.com/control-eventos/apiserver/internal/store"
	"github.com/control-eventos/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// AttendanceHandler provides code check-in and attendance history endpoints.
type AttendanceHandler struct {
	attendanceService *services.AttendanceService
	log               *logger.Logger
	now               func() time.Time
}

func NewAttendanceHandler(attendanceService *services.AttendanceService, log *logger.Logger) *AttendanceHandler {
	return &AttendanceHandler{attendanceService: attendanceService, log: log, now: time.Now}
}

// AttendanceRouter registers attendance routes. codeLimit guards the code
// endpoint against guessing.
func AttendanceRouter(
	r chi.Router,
	handler *AttendanceHandler,
	userMiddleware func(http.Handler) http.Handler,
	codeLimit func(http.Handler) http.Handler,
) {
	r.Use(userMiddleware)
	r.With(codeLimit).Post("/code", handler.RegisterByCode)
	r.Get("/history", handler.History)
	r.Get("/stats", handler.Stats)
}

func (h *AttendanceHandler) RegisterByCode(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())

	var req CodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	registered, err := h.attendanceService.RegisterByCode(r.Context(), req.Code, user.Email)
	if err != nil {
		writeAttendanceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, AttendanceResponse{Registered: registered})
}

func (h *AttendanceHandler) History(w http.ResponseWriter, r *http.Request) {
	email, ok := targetEmail(w, r)
	if !ok {
		return
	}
	records, err := h.attendanceService.History(r.Context(), email)
	if err != nil {
		writeInternalError(w, r, h.log, "failed to load attendance history", err)
		return
	}
	if records == nil {
		records = []types.AttendanceRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *AttendanceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	email, ok := targetEmail(w, r)
	if !ok {
		return
	}
	stats, err := h.attendanceService.Stats(r.Context(), email, h.now())
	if err != nil {
		writeInternalError(w, r, h.log, "failed to load attendance stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// targetEmail resolves ?email= for admins and the caller's own email otherwise.
func targetEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	user, _ := currentUser(r.Context())
	requested := types.NormalizeEmail(r.URL.Query().Get("email"))
	if requested == "" || requested == user.Email {
		return user.Email, true
	}
	if !user.Role.IsAdmin() {
		writeError(w, http.StatusForbidden, "forbidden")
		return "", false
	}
	return requested, true
}

func writeAttendanceError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrCardRequired):
		writeError(w, http.StatusPreconditionFailed, "register your card before checking in")
	case errors.Is(err, services.ErrInvalidCode):
		writeError(w, http.StatusBadRequest, "invalid confirmation code")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	default:
		writeInternalError(w, r, log, "failed to register attendance", err)
	}
}

// CodeRequest carries a typed confirmation code or a scanned QR payload.
type CodeRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}
