package handlers

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/control-eventos/apiserver/internal/logger"
	"github.com/control-eventos/apiserver/internal/services"
	"github.com/control-eventos/apiserver/internal/store"
	"github.com/control-eventos/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const (
	maxMultipartMemory = 16 << 20
	maxImageBytes      = 8 << 20
	formFieldSlack     = 1 << 20

	maxEventFormBytes     = maxImageBytes + formFieldSlack
	maxComplaintFormBytes = services.MaxComplaintImages*maxImageBytes + formFieldSlack
)

// EventHandler provides event and event check-in endpoints.
type EventHandler struct {
	eventService      *services.EventService
	attendanceService *services.AttendanceService
	log               *logger.Logger
}

func NewEventHandler(
	eventService *services.EventService,
	attendanceService *services.AttendanceService,
	log *logger.Logger,
) *EventHandler {
	return &EventHandler{
		eventService:      eventService,
		attendanceService: attendanceService,
		log:               log,
	}
}

// EventRouter registers event routes. All of them require a signed-in user.
func EventRouter(r chi.Router, handler *EventHandler, userMiddleware func(http.Handler) http.Handler) {
	r.Use(userMiddleware)
	r.Get("/", handler.ListEvents)
	r.With(RequireAdmin).Post("/", handler.CreateEvent)
	r.Route("/{eventID}", func(r chi.Router) {
		r.Get("/", handler.GetEvent)
		r.Post("/attendance", handler.RegisterAttendance)
		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Delete("/", handler.DeleteEvent)
			r.Post("/suspend", handler.SuspendEvent)
			r.Get("/qr.png", handler.QRCode)
			r.Get("/attendees", handler.ListAttendees)
		})
	})
}

func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	events, err := h.eventService.List(r.Context(), user)
	if err != nil {
		writeInternalError(w, r, h.log, "failed to list events", err)
		return
	}
	views := make([]types.EventView, 0, len(events))
	for _, event := range events {
		views = append(views, types.NewEventView(event))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())

	id, err := parseIDParam(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.eventService.Get(r.Context(), user, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeInternalError(w, r, h.log, "failed to load event", err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewEventView(event))
}

func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())

	if !parseMultipartForm(w, r, maxEventFormBytes) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := CreateEventRequest{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Date:        strings.TrimSpace(r.FormValue("date")),
		Location:    strings.TrimSpace(r.FormValue("location")),
		Description: strings.TrimSpace(r.FormValue("description")),
	}
	if err := validateStruct(req); err != nil {
		writeRequestError(w, err)
		return
	}

	input := services.NewEvent{
		Title:       req.Title,
		Date:        req.Date,
		Location:    req.Location,
		Description: req.Description,
		CreatedBy:   user.ID,
	}

	if headers := r.MultipartForm.File["image"]; len(headers) > 0 {
		upload, err := openUpload(headers[0])
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		input.Image = &upload
	}

	event, err := h.eventService.Create(r.Context(), input)
	if err != nil {
		writeInternalError(w, r, h.log, "failed to create event", err)
		return
	}
	writeJSON(w, http.StatusCreated, types.NewEventView(event))
}

func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.eventService.Delete(r.Context(), id); err != nil {
		var attendees *services.AttendeesError
		switch {
		case errors.As(err, &attendees):
			writeError(w, http.StatusConflict, attendees.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "event not found")
		default:
			writeInternalError(w, r, h.log, "failed to delete event", err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventHandler) SuspendEvent(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := SuspendRequest{Suspended: true}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeRequestError(w, err)
			return
		}
	}

	if err := h.eventService.Suspend(r.Context(), id, req.Suspended); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeInternalError(w, r, h.log, "failed to suspend event", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *EventHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	size, err := parseOptionalInt(r.URL.Query().Get("size"))
	if err != nil || size < 0 {
		writeError(w, http.StatusBadRequest, "invalid size")
		return
	}

	png, err := h.eventService.QRCode(r.Context(), id, size)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeInternalError(w, r, h.log, "failed to render qr code", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *EventHandler) ListAttendees(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.attendanceService.EventAttendees(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeInternalError(w, r, h.log, "failed to list attendees", err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// RegisterAttendance checks a user in to the event. Admins may name any
// email; everyone else registers themselves.
func (h *EventHandler) RegisterAttendance(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())

	id, err := parseIDParam(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req EventAttendanceRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeRequestError(w, err)
			return
		}
	}

	email := user.Email
	if req.Email != "" && types.NormalizeEmail(req.Email) != user.Email {
		if !user.Role.IsAdmin() {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		email = types.NormalizeEmail(req.Email)
	}

	registered, err := h.attendanceService.Register(r.Context(), id, email)
	if err != nil {
		writeAttendanceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, AttendanceResponse{Registered: registered})
}

func openUpload(header *multipart.FileHeader) (services.Upload, error) {
	if header.Size > maxImageBytes {
		return services.Upload{}, errors.New("uploaded file too large")
	}
	file, err := header.Open()
	if err != nil {
		return services.Upload{}, errors.New("failed to read upload")
	}
	defer file.Close()

	data, err := readFileLimited(file, maxImageBytes)
	if err != nil {
		return services.Upload{}, err
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return services.Upload{}, errors.New("only image uploads are allowed")
	}
	return services.Upload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	}, nil
}

type CreateEventRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Date        string `json:"date" validate:"max=100"`
	Location    string `json:"location" validate:"max=500"`
	Description string `json:"description" validate:"max=5000"`
}

type SuspendRequest struct {
	Suspended bool `json:"suspended"`
}

type EventAttendanceRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

type AttendanceResponse struct {
	Registered bool `json:"registered"`
}
