package httpapi

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/flowplane/flowplane/pkg/apierr"
	"github.com/flowplane/flowplane/pkg/metrics"
	"github.com/flowplane/flowplane/pkg/storage"
	"github.com/flowplane/flowplane/pkg/types"
)

// PasswordVerifier checks a plaintext candidate against a stored hash.
// No package in the retrieval pack touches password hashing directly
// (it's out of scope for a cluster control plane); bcrypt is the de
// facto standard for this in Go and is wired behind an interface so a
// deployment can swap in its own scheme without touching the login
// handler.
type PasswordVerifier interface {
	Verify(hash, plaintext string) bool
}

// BcryptVerifier is the default PasswordVerifier.
type BcryptVerifier struct{}

func (BcryptVerifier) Verify(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

type sessionEntry struct {
	ctx       types.AuthContext
	csrf      string
	expiresAt time.Time
}

// SessionStore is an in-memory session table, mirroring the
// mutex-guarded-map idiom of pkg/xds/session.Table — sessions are
// process-local and do not survive a restart, matching how the control
// plane treats its xDS session table as disposable connection state
// rather than durable data.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]sessionEntry
	ttl      time.Duration
}

// NewSessionStore builds a session table whose sessions expire ttl after
// creation; a lookup does not extend a session's lifetime.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{sessions: make(map[string]sessionEntry), ttl: ttl}
}

func (s *SessionStore) create(ctx types.AuthContext) (id, csrf string) {
	id = uuid.NewString()
	csrf = uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = sessionEntry{ctx: ctx, csrf: csrf, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return id, csrf
}

// Lookup returns the AuthContext for a live, unexpired session id.
func (s *SessionStore) Lookup(id string) (types.AuthContext, bool) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return types.AuthContext{}, false
	}
	return entry.ctx, true
}

// Authenticator resolves an AuthContext from an inbound request. The
// bootstrap token (a static bearer value from the BOOTSTRAP_TOKEN env var)
// grants admin:all; any other bearer value or the session cookie is
// looked up in the SessionStore.
type Authenticator struct {
	Sessions       *SessionStore
	BootstrapToken string
}

var errUnauthenticated = apierr.New(apierr.Forbidden, "auth", "", nil)

// Authenticate extracts an AuthContext from the Authorization header or
// the flowplane_session cookie. It never returns NotFound — an
// unrecognized credential is always Forbidden, since revealing "no such
// token" vs. "wrong token" would leak which bootstrap tokens exist.
func (a *Authenticator) Authenticate(r *http.Request) (types.AuthContext, error) {
	if bearer, ok := bearerToken(r); ok {
		if a.BootstrapToken != "" && bearer == a.BootstrapToken {
			return types.AuthContext{TokenID: "bootstrap", TokenName: "bootstrap", Scopes: []types.Scope{mustAdminAllScope}}, nil
		}
		if ctx, ok := a.Sessions.Lookup(bearer); ok {
			return ctx, nil
		}
		return types.AuthContext{}, errUnauthenticated
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if ctx, ok := a.Sessions.Lookup(cookie.Value); ok {
			return ctx, nil
		}
	}
	return types.AuthContext{}, errUnauthenticated
}

const sessionCookieName = "flowplane_session"

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(h, prefix) {
		return strings.TrimPrefix(h, prefix), true
	}
	return "", false
}

var mustAdminAllScope = func() types.Scope {
	s, err := types.ParseScope("admin:all")
	if err != nil {
		panic(err) // admin:all is a compile-time-known literal; a parse failure is a bug, not a runtime condition
	}
	return s
}()

// LoginRequest is the decoded body of POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned alongside the session cookie.
type LoginResponse struct {
	SessionID string   `json:"sessionId"`
	CSRFToken string   `json:"csrfToken"`
	UserID    string   `json:"userId"`
	UserEmail string   `json:"userEmail"`
	Scopes    []string `json:"scopes"`
	Teams     []string `json:"teams"`
	OrgID     string   `json:"orgId,omitempty"`
	OrgName   string   `json:"orgName,omitempty"`
}

// Login verifies credentials and mints a session. A failed lookup and a
// failed password check return the identical error, so the response
// shape never distinguishes "no such user" from "wrong password". An
// unknown user returns before any password check, so response time is
// not equalised between the two cases.
func (s *Server) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var (
		user  *types.User
		memberships []*types.Membership
	)
	err := s.store.View(ctx, func(tx storage.Tx) error {
		u, err := tx.Users().GetByEmail(req.Email)
		if err != nil {
			return apierr.Forbiddenf("user", req.Email, "login")
		}
		user = u
		memberships, err = tx.Memberships().ListByUser(u.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if user.Status != types.UserStatusActive || !s.passwords.Verify(user.PasswordHash, req.Password) {
		return nil, apierr.Forbiddenf("user", req.Email, "login")
	}

	var scopeStrings []string
	if user.IsAdmin {
		scopeStrings = append(scopeStrings, "admin:all")
	}
	var scopes []types.Scope
	var teamNames []string
	err = s.store.View(ctx, func(tx storage.Tx) error {
		for _, m := range memberships {
			scopeStrings = append(scopeStrings, m.Scopes...)
			team, err := tx.Teams().GetByID(m.TeamID)
			if err != nil {
				continue // membership referencing a deleted team: skip rather than fail login
			}
			teamNames = append(teamNames, team.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, raw := range scopeStrings {
		sc, err := types.ParseScope(raw)
		if err != nil {
			continue // a malformed stored scope should never block login; it simply grants nothing
		}
		scopes = append(scopes, sc)
	}

	authCtx := types.AuthContext{TokenID: user.ID, TokenName: user.Email, Scopes: scopes}
	sessionID, csrf := s.sessions.create(authCtx)

	return &LoginResponse{
		SessionID: sessionID,
		CSRFToken: csrf,
		UserID:    user.ID,
		UserEmail: user.Email,
		Scopes:    scopeStrings,
		Teams:     teamNames,
	}, nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.Login(r.Context(), req)
	if err != nil {
		metrics.AuthFailuresTotal.WithLabelValues(string(apierr.KindOf(err))).Inc()
		writeError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    resp.SessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, resp)
}
