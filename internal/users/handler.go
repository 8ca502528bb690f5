package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/brightsmile-hq/brightsmile-portal/internal/authz"
	"github.com/brightsmile-hq/brightsmile-portal/internal/platform/httpx"
	"github.com/brightsmile-hq/brightsmile-portal/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	guard    authz.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		guard:    guard,
	}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermUsersView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll(shared.PermUsersEdit))
		r.Post("/", h.create)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	req := ListUsersRequest{Page: queryInt(r, "page", 1), PerPage: queryInt(r, "per_page", 50)}
	if v := r.URL.Query().Get("is_active"); v != "" {
		active := v == "true"
		req.IsActive = &active
	}
	if v := r.URL.Query().Get("search"); v != "" {
		req.Search = &v
	}

	users, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	responses := make([]UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, toUserResponse(user, nil))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"users":      responses,
		"pagination": shared.NewPagination(req.Page, req.PerPage, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	user, roles, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "user not found")
			return
		}
		h.logger.Error("get user", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toUserResponse(user, roles))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.ActorID(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "no authenticated actor")
		return
	}

	var req CreateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, validation, err := h.service.Create(r.Context(), actorID, req)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", "email already registered")
			return
		}
		h.logger.Error("create user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if !validation.Valid {
		httpx.JSON(w, http.StatusForbidden, map[string]any{"errors": validation.Errors})
		return
	}

	httpx.JSON(w, http.StatusCreated, toUserResponse(user, nil))
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
