package authz

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/brightsmile-hq/brightsmile-portal/internal/shared"
)

// Middleware wires permission checks into the HTTP stack.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// RequireAny lets the request through when the actor holds at least one of
// the listed permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			effective, ok := m.effective(w, r)
			if !ok {
				return
			}
			for _, code := range normalized {
				if effective.Has(code) {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// RequireAll lets the request through only when the actor holds every
// listed permission.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			effective, ok := m.effective(w, r)
			if !ok {
				return
			}
			for _, code := range normalized {
				if !effective.Has(code) {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// effective resolves the current actor's permission set, writing the HTTP
// error response itself when that is not possible.
func (m Middleware) effective(w http.ResponseWriter, r *http.Request) (EffectivePermissions, bool) {
	userID, ok := m.currentUserID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return EffectivePermissions{}, false
	}
	effective, err := m.Resolver.ResolveEffectivePermissions(r.Context(), userID)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("resolve effective permissions", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return EffectivePermissions{}, false
	}
	return effective, true
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("parse session user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		unique[p] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for p := range unique {
		normalized = append(normalized, p)
	}
	return normalized
}
