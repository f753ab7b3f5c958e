package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/flowplane/flowplane/pkg/authz"
	"github.com/flowplane/flowplane/pkg/filters"
	"github.com/flowplane/flowplane/pkg/log"
	"github.com/flowplane/flowplane/pkg/materializer"
	"github.com/flowplane/flowplane/pkg/metrics"
	"github.com/flowplane/flowplane/pkg/secrets"
	"github.com/flowplane/flowplane/pkg/storage"
	"github.com/flowplane/flowplane/pkg/types"
)

// Server holds every dependency a handler might need. It has no
// lifecycle of its own; cmd/flowplaned constructs one and hands
// Router() to an http.Server.
type Server struct {
	store          storage.Transactor
	materializer   *materializer.Materializer
	registry       *filters.Registry
	converter      *filters.Converter
	kernel         *authz.Kernel
	resolver       *secrets.Resolver
	auth           *Authenticator
	sessions       *SessionStore
	passwords      PasswordVerifier
	bootstrap      BootstrapConfig
	allowedOrigins map[string]bool
	log            zerolog.Logger
}

// Config bundles the constructor arguments for New.
type Config struct {
	Store          storage.Transactor
	Materializer   *materializer.Materializer
	Registry       *filters.Registry
	Converter      *filters.Converter
	Kernel         *authz.Kernel
	Resolver       *secrets.Resolver
	BootstrapToken string
	SessionTTL     time.Duration
	Bootstrap      BootstrapConfig
	Passwords      PasswordVerifier
	// AllowedOrigins lists browser origins permitted to read this API's
	// resources cross-origin (e.g. an MCP read-surface client running in
	// a browser extension). Empty means no CORS headers are sent.
	AllowedOrigins []string
}

// New builds a Server from cfg, wiring a fresh SessionStore and, unless
// cfg.Passwords is set, the default bcrypt verifier.
func New(cfg Config) *Server {
	sessions := NewSessionStore(cfg.SessionTTL)
	passwords := cfg.Passwords
	if passwords == nil {
		passwords = BcryptVerifier{}
	}
	origins := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		origins[o] = true
	}
	return &Server{
		store:          cfg.Store,
		materializer:   cfg.Materializer,
		registry:       cfg.Registry,
		converter:      cfg.Converter,
		kernel:         cfg.Kernel,
		resolver:       cfg.Resolver,
		auth:           &Authenticator{Sessions: sessions, BootstrapToken: cfg.BootstrapToken},
		sessions:       sessions,
		passwords:      passwords,
		bootstrap:      cfg.Bootstrap,
		allowedOrigins: origins,
		log:            log.WithComponent("httpapi"),
	}
}

// Router builds the full route table. Patterns use the Go 1.22+
// method-and-wildcard ServeMux syntax — no third-party router appears
// anywhere in the retrieval pack, so the standard library's own mux is
// the grounded choice here (see DESIGN.md).
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/login", s.instrument("auth_login", s.handleLogin))

	mux.HandleFunc("POST /api/v1/api-definitions", s.instrument("api_definitions_create", s.handleCreateDefinition))
	mux.HandleFunc("POST /api/v1/api-definitions/{id}/routes", s.instrument("api_definitions_append_route", s.handleAppendRoute))
	mux.HandleFunc("POST /api/v1/api-definitions/from-openapi", s.instrument("api_definitions_from_openapi", s.handleFromOpenAPI))
	mux.HandleFunc("GET /api/v1/api-definitions/{id}/bootstrap", s.instrument("api_definitions_bootstrap", s.handleBootstrap))

	mux.HandleFunc("GET /api/v1/teams/{team}/secrets", s.instrument("secrets_list", s.handleListSecrets))
	mux.HandleFunc("POST /api/v1/teams/{team}/secrets", s.instrument("secrets_create", s.handleCreateSecret))
	mux.HandleFunc("GET /api/v1/teams/{team}/secrets/{name}", s.instrument("secrets_get", s.handleGetSecret))
	mux.HandleFunc("PUT /api/v1/teams/{team}/secrets/{name}", s.instrument("secrets_update", s.handleUpdateSecret))
	mux.HandleFunc("DELETE /api/v1/teams/{team}/secrets/{name}", s.instrument("secrets_delete", s.handleDeleteSecret))

	mux.HandleFunc("POST /api/v1/route-configs/{name}/virtual-hosts/{vh}/filters", s.instrument("filters_attach", s.handleAttachFilter))
	mux.HandleFunc("DELETE /api/v1/route-configs/{name}/virtual-hosts/{vh}/filters/{filter}", s.instrument("filters_detach", s.handleDetachFilter))
	mux.HandleFunc("POST /api/v1/route-configs/{name}/virtual-hosts/{vh}/routes/{route}/filters", s.instrument("filters_attach_route", s.handleAttachRouteFilter))
	mux.HandleFunc("DELETE /api/v1/route-configs/{name}/virtual-hosts/{vh}/routes/{route}/filters/{filter}", s.instrument("filters_detach_route", s.handleDetachRouteFilter))

	return s.withCORS(mux)
}

// withCORS echoes Access-Control-Allow-Origin for origins in
// allowedOrigins — an MCP read-surface running in a browser is the only
// client expected to need this, so an empty allowlist (the default)
// leaves the API with no CORS headers at all.
func (s *Server) withCORS(h http.Handler) http.Handler {
	if len(s.allowedOrigins) == 0 {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// instrument wraps a handler with request timing and status-labeled
// counters via APIRequestsTotal/APIRequestDuration.
func (s *Server) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)
		metrics.APIRequestsTotal.WithLabelValues(route, http.StatusText(sw.status)).Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, route)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// decodeJSON decodes r's body into v, writing a 400 error response and
// returning false on failure so callers can `if !decodeJSON(...) { return }`.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeValidationError(w, "malformed request body: "+err.Error())
		return false
	}
	return true
}

// signalRebuild requests an xDS cache refresh after a direct filter
// attachment mutation, the same signal CreateDefinition/AppendRoute/
// UpdateDefinition/DeleteDefinition emit on commit.
func (s *Server) signalRebuild(reason, resourceID string) {
	s.materializer.SignalRebuild(reason, resourceID)
}

// authContext runs the configured Authenticator and, on failure, writes
// the rejection response and increments AuthFailuresTotal itself so
// every handler gets consistent auth metering for free.
func (s *Server) authContext(w http.ResponseWriter, r *http.Request) (types.AuthContext, bool) {
	ctx, err := s.auth.Authenticate(r)
	if err != nil {
		metrics.AuthFailuresTotal.WithLabelValues("unauthenticated").Inc()
		writeError(w, err)
		return types.AuthContext{}, false
	}
	return ctx, true
}
