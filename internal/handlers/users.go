package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/control-eventos/apiserver/internal/logger"
	"github.com/control-eventos/apiserver/internal/services"
	"github.com/control-eventos/apiserver/internal/store"
	"github.com/control-eventos/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// UserHandler provides admin user management endpoints.
type UserHandler struct {
	userService *services.UserService
	log         *logger.Logger
}

func NewUserHandler(userService *services.UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{userService: userService, log: log}
}

// UserRouter registers user management routes. All of them require an admin.
func UserRouter(r chi.Router, handler *UserHandler, userMiddleware func(http.Handler) http.Handler) {
	r.Use(userMiddleware, RequireAdmin)
	r.Get("/", handler.ListUsers)
	r.Post("/", handler.CreateUser)
	r.Delete("/{userID}", handler.DeleteUser)
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	role := types.Role(strings.TrimSpace(r.URL.Query().Get("role")))
	users, err := h.userService.List(r.Context(), role)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRole) {
			writeError(w, http.StatusBadRequest, "invalid role")
			return
		}
		writeInternalError(w, r, h.log, "failed to list users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentUser(r.Context())

	var req CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	user, err := h.userService.CreateByAdmin(r.Context(), actor, services.NewUser{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     types.Role(req.Role),
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrForbidden):
			writeError(w, http.StatusForbidden, "only global admins can create global admins")
		case errors.Is(err, services.ErrInvalidRole):
			writeError(w, http.StatusBadRequest, "invalid role")
		case errors.Is(err, store.ErrConflict):
			writeError(w, http.StatusConflict, "email already registered")
		default:
			writeInternalError(w, r, h.log, "failed to create user", err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentUser(r.Context())

	id, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.userService.Delete(r.Context(), actor, id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, services.ErrForbidden):
			writeError(w, http.StatusForbidden, err.Error())
		default:
			writeInternalError(w, r, h.log, "failed to delete user", err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Name     string `json:"name" validate:"omitempty,max=120"`
	Role     string `json:"role" validate:"omitempty,oneof=global-admin admin user"`
}
