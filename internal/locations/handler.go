package locations

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

// Handler manages location endpoints.
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

// MountRoutes registers location routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermLocationsView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/members", h.members)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll(shared.PermLocationsEdit))
		r.Post("/", h.create)
		r.Patch("/{id}", h.update)
		r.Post("/{id}/members", h.addMember)
		r.Delete("/{id}/members/{userID}", h.removeMember)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	locations, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list locations", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	responses := make([]LocationResponse, 0, len(locations))
	for _, loc := range locations {
		responses = append(responses, toLocationResponse(loc))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"locations": responses})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.locationID(w, r)
	if !ok {
		return
	}
	loc, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "get location", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLocationResponse(loc))
}

func (h *Handler) members(w http.ResponseWriter, r *http.Request) {
	id, ok := h.locationID(w, r)
	if !ok {
		return
	}
	members, err := h.service.Members(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "list location members", err)
		return
	}
	responses := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		responses = append(responses, toMemberResponse(m))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members": responses})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req CreateLocationRequest
	if !h.decode(w, r, &req) {
		return
	}
	loc, err := h.service.Create(r.Context(), actorID, req)
	if err != nil {
		h.respondServiceError(w, "create location", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toLocationResponse(loc))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.locationID(w, r)
	if !ok {
		return
	}
	var req UpdateLocationRequest
	if !h.decode(w, r, &req) {
		return
	}
	loc, err := h.service.Update(r.Context(), actorID, id, req)
	if err != nil {
		h.respondServiceError(w, "update location", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLocationResponse(loc))
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.locationID(w, r)
	if !ok {
		return
	}
	var req AddMemberRequest
	if !h.decode(w, r, &req) {
		return
	}
	decision, err := h.service.AddMember(r.Context(), actorID, id, req)
	if err != nil {
		h.respondServiceError(w, "add location member", err)
		return
	}
	if !decision.Allowed {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", decision.Reason)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.locationID(w, r)
	if !ok {
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	decision, err := h.service.RemoveMember(r.Context(), actorID, id, userID)
	if err != nil {
		h.respondServiceError(w, "remove location member", err)
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

func (h *Handler) locationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid location id")
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
		httpx.Problem(w, http.StatusNotFound, "Not Found", "location not found")
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
