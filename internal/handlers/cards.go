package handlers

import (
	"errors"
	"net/http"

	"github.com/control-eventos/apiserver/internal/logger"
	"github.com/control-eventos/apiserver/internal/services"
	"github.com/control-eventos/apiserver/internal/store"
	"github.com/control-eventos/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// CardHandler provides identity card endpoints.
type CardHandler struct {
	cardService *services.CardService
	log         *logger.Logger
}

func NewCardHandler(cardService *services.CardService, log *logger.Logger) *CardHandler {
	return &CardHandler{cardService: cardService, log: log}
}

// CardRouter registers card routes. All of them require a signed-in user.
func CardRouter(r chi.Router, handler *CardHandler, userMiddleware func(http.Handler) http.Handler) {
	r.Use(userMiddleware)
	r.With(RequireAdmin).Get("/", handler.ListCards)
	r.Get("/me", handler.GetMyCard)
	r.Put("/me", handler.RegisterMyCard)
	r.Patch("/me", handler.UpdateMyCard)
	r.Get("/{email}", handler.GetCard)
	r.With(RequireAdmin).Put("/{email}", handler.UpsertCard)
}

func (h *CardHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.cardService.List(r.Context())
	if err != nil {
		writeInternalError(w, r, h.log, "failed to list cards", err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (h *CardHandler) GetMyCard(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	card, err := h.cardService.Mine(r.Context(), user.Email)
	if err != nil {
		h.writeCardError(w, r, err, "failed to load card")
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *CardHandler) RegisterMyCard(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())

	var req CardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	card, err := h.cardService.Register(r.Context(), user.Email, req.toCard())
	if err != nil {
		h.writeCardError(w, r, err, "failed to register card")
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *CardHandler) UpdateMyCard(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())

	var req CardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	card, err := h.cardService.Update(r.Context(), user.Email, req.toCard())
	if err != nil {
		h.writeCardError(w, r, err, "failed to update card")
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *CardHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	card, err := h.cardService.Get(r.Context(), user, chi.URLParam(r, "email"))
	if err != nil {
		h.writeCardError(w, r, err, "failed to load card")
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *CardHandler) UpsertCard(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())

	email := chi.URLParam(r, "email")
	if err := validate.Var(email, "required,email"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	}

	var req CardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	card, err := h.cardService.UpsertFor(r.Context(), user, email, req.toCard())
	if err != nil {
		h.writeCardError(w, r, err, "failed to save card")
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *CardHandler) writeCardError(w http.ResponseWriter, r *http.Request, err error, message string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "card not found")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		writeInternalError(w, r, h.log, message, err)
	}
}

// CardRequest is the identity card form.
type CardRequest struct {
	Referente         string `json:"referente" validate:"max=120"`
	Nombre            string `json:"name" validate:"required,max=120"`
	ApellidoPaterno   string `json:"apellido_paterno" validate:"required,max=120"`
	ApellidoMaterno   string `json:"apellido_materno" validate:"max=120"`
	Telefono          string `json:"telefono" validate:"required,max=30"`
	CorreoElectronico string `json:"correo_electronico" validate:"omitempty,email"`
	CalleNumero       string `json:"calle_numero" validate:"max=200"`
	Colonia           string `json:"colonia" validate:"max=120"`
	Municipio         string `json:"municipio" validate:"required,max=120"`
	Estado            string `json:"estado" validate:"max=120"`
	Edad              int    `json:"edad" validate:"min=0,max=130"`
	Sexo              string `json:"sexo" validate:"max=20"`
	Seccion           string `json:"seccion" validate:"required,max=20"`
	Necesidad         string `json:"necesidad" validate:"max=2000"`
	Buzon             string `json:"buzon" validate:"max=2000"`
	SeguimientoBuzon  string `json:"seguimiento_buzon" validate:"max=2000"`
}

func (c CardRequest) toCard() types.Card {
	return types.Card{
		Referente:         c.Referente,
		Nombre:            c.Nombre,
		ApellidoPaterno:   c.ApellidoPaterno,
		ApellidoMaterno:   c.ApellidoMaterno,
		Telefono:          c.Telefono,
		CorreoElectronico: c.CorreoElectronico,
		CalleNumero:       c.CalleNumero,
		Colonia:           c.Colonia,
		Municipio:         c.Municipio,
		Estado:            c.Estado,
		Edad:              c.Edad,
		Sexo:              c.Sexo,
		Seccion:           c.Seccion,
		Necesidad:         c.Necesidad,
		Buzon:             c.Buzon,
		SeguimientoBuzon:  c.SeguimientoBuzon,
	}
}
