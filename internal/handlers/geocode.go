package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/control-eventos/apiserver/internal/geocode"
	"github.com/control-eventos/apiserver/internal/logger"
	"github.com/go-chi/chi/v5"
)

// Geocoder resolves free-text addresses to places.
type Geocoder interface {
	Search(ctx context.Context, query string, limit int) ([]geocode.Place, error)
}

// GeocodeHandler proxies address suggestions for the event form.
type GeocodeHandler struct {
	geocoder Geocoder
	log      *logger.Logger
}

func NewGeocodeHandler(geocoder Geocoder, log *logger.Logger) *GeocodeHandler {
	return &GeocodeHandler{geocoder: geocoder, log: log}
}

func GeocodeRouter(r chi.Router, handler *GeocodeHandler, userMiddleware func(http.Handler) http.Handler) {
	r.With(userMiddleware).Get("/search", handler.Search)
}

// Search answers an empty list for queries too short to suggest on.
func (h *GeocodeHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit, err := parseOptionalInt(r.URL.Query().Get("limit"))
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	places, err := h.geocoder.Search(r.Context(), query, limit)
	if err != nil {
		if errors.Is(err, geocode.ErrQueryTooShort) {
			writeJSON(w, http.StatusOK, []geocode.Place{})
			return
		}
		if h.log != nil {
			h.log.Warn(r.Context(), "geocode search failed", err)
		}
		writeError(w, http.StatusBadGateway, "geocoding service unavailable")
		return
	}
	if places == nil {
		places = []geocode.Place{}
	}
	writeJSON(w, http.StatusOK, places)
}
