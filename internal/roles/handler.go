package roles

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

// Handler manages role management endpoints.
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

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermRolesView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/permissions", h.template)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll(shared.PermRolesEdit))
		r.Post("/", h.create)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.deactivate)
		r.Put("/{id}/permissions", h.setTemplate)
		r.Post("/{id}/assignments", h.assign)
		r.Delete("/{id}/assignments", h.revoke)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	responses := make([]RoleResponse, 0, len(roles))
	for _, role := range roles {
		responses = append(responses, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": responses})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	role, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "get role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) template(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	entries, err := h.service.Template(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "get role template", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req CreateRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, _, err := h.service.Create(r.Context(), actorID, req)
	if err != nil {
		h.respondServiceError(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req UpdateRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, decision, err := h.service.Update(r.Context(), actorID, id, req)
	if err != nil {
		h.respondServiceError(w, "update role", err)
		return
	}
	if !decision.Allowed {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", decision.Reason)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	decision, err := h.service.Deactivate(r.Context(), actorID, id)
	if err != nil {
		h.respondServiceError(w, "deactivate role", err)
		return
	}
	if !decision.Allowed {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", decision.Reason)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setTemplate(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req SetTemplateRequest
	if !h.decode(w, r, &req) {
		return
	}
	decision, err := h.service.SetTemplate(r.Context(), actorID, id, req)
	if err != nil {
		h.respondServiceError(w, "set role template", err)
		return
	}
	if !decision.Allowed {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", decision.Reason)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req AssignRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	decision, err := h.service.Assign(r.Context(), actorID, id, req)
	if err != nil {
		h.respondServiceError(w, "assign role", err)
		return
	}
	if !decision.Allowed {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", decision.Reason)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req RevokeRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	decision, err := h.service.Revoke(r.Context(), actorID, id, req)
	if err != nil {
		h.respondServiceError(w, "revoke role", err)
		return
	}
	if !decision.Allowed {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", decision.Reason)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	actorID, ok := shared.ActorID(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "no authenticated actor")
		return 0, false
	}
	return actorID, true
}

func (h *Handler) roleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid role id")
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "role not found")
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
