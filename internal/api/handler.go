// Package api exposes the HTTP surface: login and token renewal, the
// authenticated self views, and the public roster.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mvl-at/openkeg/internal/auth"
	"github.com/mvl-at/openkeg/internal/config"
	"github.com/mvl-at/openkeg/internal/directory"
	"github.com/mvl-at/openkeg/internal/domain"
	"github.com/mvl-at/openkeg/internal/middleware"
	"github.com/mvl-at/openkeg/internal/roster"
)

// Handler carries the dependencies of all HTTP endpoints.
type Handler struct {
	cfg       *config.Config
	issuer    *auth.Issuer
	validator *auth.Validator
	authz     *auth.Authorizer
	client    *directory.Client
	cache     *roster.Cache
	logger    *slog.Logger
}

// NewHandler wires the HTTP endpoints to their collaborators.
func NewHandler(
	cfg *config.Config,
	issuer *auth.Issuer,
	validator *auth.Validator,
	authz *auth.Authorizer,
	client *directory.Client,
	cache *roster.Cache,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		cfg:       cfg,
		issuer:    issuer,
		validator: validator,
		authz:     authz,
		client:    client,
		cache:     cache,
		logger:    logger,
	}
}

// Routes assembles the router. The login routes sit behind the rate
// limiter because every attempt costs a directory bind; everything else
// goes through the bearer-token authenticator.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Authorization", "Authorization-Renewal"},
	}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimiter(h.cfg.RateLimitRPS, h.cfg.RateLimitBurst))
		r.Get("/login", h.Login)
		r.Get("/login/renewal", h.RenewLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticator(h.validator, h.logger))
		r.Get("/members", h.Members)
		r.With(middleware.RequireMember).Get("/self", h.Self)
		r.With(middleware.RequireMember).Get("/self/roles", h.SelfRoles)
	})

	return r
}

// Login authenticates Basic credentials against the directory and, on
// success, returns a fresh token pair in the Authorization and
// Authorization-Renewal response headers. All credential failures collapse
// into one opaque 401; only an unreachable directory or unusable signing
// key surface as 503.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok {
		h.unauthorized(w)
		return
	}
	member, found := h.cache.Find(username)
	if !found {
		h.logger.Debug("login attempt for unknown identifier", "identifier", username)
		h.unauthorized(w)
		return
	}
	if err := h.client.Authenticate(r.Context(), member.FullUsername, password); err != nil {
		var sessErr *domain.SessionError
		if errors.As(err, &sessErr) {
			h.logger.Error("directory unavailable during login", "error", err)
			h.unavailable(w)
			return
		}
		h.logger.Debug("directory rejected credentials", "username", member.Username)
		h.unauthorized(w)
		return
	}

	access, renewal, err := h.issuer.IssuePair(member)
	if err != nil {
		h.logger.Error("unable to sign token pair", "error", err)
		h.unavailable(w)
		return
	}
	w.Header().Set("Authorization", "Bearer "+access)
	w.Header().Set("Authorization-Renewal", "Bearer "+renewal)
	h.logger.Info("member logged in", "username", member.Username)
	w.WriteHeader(http.StatusOK)
}

// RenewLogin exchanges a renewal token for a fresh access token, returned
// in the Authorization response header.
func (h *Handler) RenewLogin(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		h.unauthorized(w)
		return
	}
	claims, err := h.validator.Decode(token)
	if err != nil {
		h.logger.Debug("rejecting renewal token", "error", err)
		h.unauthorized(w)
		return
	}
	member, err := h.validator.Resolve(claims, auth.RenewalToken)
	if err != nil {
		h.logger.Debug("rejecting renewal token", "error", err)
		h.unauthorized(w)
		return
	}
	access, _, err := h.issuer.Issue(member, auth.AccessToken)
	if err != nil {
		h.logger.Error("unable to sign access token", "error", err)
		h.unavailable(w)
		return
	}
	w.Header().Set("Authorization", "Bearer "+access)
	w.WriteHeader(http.StatusOK)
}

// Self returns the authenticated member's own record.
func (h *Handler) Self(w http.ResponseWriter, r *http.Request) {
	member, ok := middleware.MemberFromContext(r.Context())
	if !ok {
		h.unauthorized(w)
		return
	}
	h.writeJSON(w, http.StatusOK, member)
}

// SelfRoles returns the logical roles the authenticated member holds.
func (h *Handler) SelfRoles(w http.ResponseWriter, r *http.Request) {
	member, ok := middleware.MemberFromContext(r.Context())
	if !ok {
		h.unauthorized(w)
		return
	}
	roles := make([]string, 0, len(h.cfg.Roles))
	for role := range h.cfg.Roles {
		if h.authz.HasRole(member, role) {
			roles = append(roles, role)
		}
	}
	sort.Strings(roles)
	h.writeJSON(w, http.StatusOK, roles)
}

// Members returns the roster grouped by register. Anonymous callers get
// the public subset without contact details.
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	_, authenticated := middleware.MemberFromContext(r.Context())
	h.writeJSON(w, http.StatusOK, toWebCrew(h.cache.Snapshot(), authenticated))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", "error", err)
	}
}

func (h *Handler) unauthorized(w http.ResponseWriter) {
	middleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
}

func (h *Handler) unavailable(w http.ResponseWriter) {
	middleware.WriteError(w, http.StatusServiceUnavailable, "service unavailable")
}

func bearerToken(r *http.Request) (string, bool) {
	return strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
}
