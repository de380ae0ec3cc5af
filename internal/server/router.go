package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/ridgeline/accessd/internal/auth"
	"github.com/ridgeline/accessd/internal/facade"
	"github.com/ridgeline/accessd/internal/policy"
)

// Facade is the minimal surface the router needs from
// internal/facade.Facade, so tests can substitute a fake.
type Facade interface {
	Login(up policy.UserPass) (auth.Cookie, bool)
	AuthToken(req auth.TokenRequest) (auth.BearerToken, bool)
	AuthenticateRequest(authHeader, cookieValue string) string
	CheckAccess(ctx context.Context, action, resource, authHeader, cookieValue string) (facade.Decision, int)
	CookieName() string
}

// ResourceStore is the minimal in-memory map[path]->bytes backing the
// GET|HEAD|PUT /<resource> row of the wire contract. Real resource
// serving semantics are out of scope; this store exists only so the
// access-decision gate is exercisable end to end.
type ResourceStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewResourceStore returns an empty store.
func NewResourceStore() *ResourceStore {
	return &ResourceStore{files: make(map[string][]byte)}
}

func (s *ResourceStore) get(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.files[path]
	return b, ok
}

func (s *ResourceStore) put(path string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = body
}

// NewHandler builds the complete HTTP wire contract over f and store.
func NewHandler(f Facade, store *ResourceStore, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /login", handleLogin(f, logger))
	mux.HandleFunc("POST /auth_token_request", handleAuthTokenRequest(f, logger))
	mux.HandleFunc("GET /logout", handleLogout(f))
	mux.HandleFunc("GET /__/whoami", handleWhoami(f))
	mux.HandleFunc("GET /__/access/{action}/{resource...}", handleAccess(f, logger))
	mux.HandleFunc("GET /{resource...}", handleResourceRead(f, store))
	mux.HandleFunc("HEAD /{resource...}", handleResourceRead(f, store))
	mux.HandleFunc("PUT /{resource...}", handleResourcePut(f, store))

	return mux
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func handleLogin(f Facade, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		cookie, ok := f.Login(policy.UserPass{Username: req.Username, Password: req.Password})
		if !ok {
			writeError(w, http.StatusUnauthorized, "login failed")
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Path:     "/",
			HttpOnly: true,
		})
		w.WriteHeader(http.StatusOK)
	}
}

type authTokenRequest struct {
	UserPass struct {
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"userpass"`
	Description string `json:"description"`
	Lifetime    int64  `json:"lifetime"`
}

type authTokenResponse struct {
	Value   string            `json:"value"`
	Headers map[string]string `json:"headers"`
}

func handleAuthTokenRequest(f Facade, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		token, ok := f.AuthToken(auth.TokenRequest{
			UserPass:    policy.UserPass{Username: req.UserPass.Username, Password: req.UserPass.Password},
			Description: req.Description,
			LifetimeSec: req.Lifetime,
		})
		if !ok {
			writeError(w, http.StatusUnauthorized, "auth_token_request failed")
			return
		}
		writeJSON(w, logger, http.StatusOK, authTokenResponse{
			Value:   token.Value,
			Headers: map[string]string{"Authorization": "Bearer " + token.Value},
		})
	}
}

func handleLogout(f Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     f.CookieName(),
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
		w.WriteHeader(http.StatusOK)
	}
}

func handleWhoami(f Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := f.AuthenticateRequest(r.Header.Get("Authorization"), cookieValue(r, f.CookieName()))
		writeJSON(w, nil, http.StatusOK, map[string]string{"username": username})
	}
}

func handleAccess(f Facade, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action := r.PathValue("action")
		resource := "/" + r.PathValue("resource")
		decision, status := f.CheckAccess(r.Context(), action, resource, r.Header.Get("Authorization"), cookieValue(r, f.CookieName()))
		writeJSON(w, logger, status, decision)
	}
}

func handleResourceRead(f Facade, store *ResourceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resource := "/" + r.PathValue("resource")
		_, status := f.CheckAccess(r.Context(), r.Method, resource, r.Header.Get("Authorization"), cookieValue(r, f.CookieName()))
		if status != http.StatusOK {
			writeError(w, http.StatusUnauthorized, "access denied")
			return
		}
		body, ok := store.get(resource)
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write(body)
	}
}

func handleResourcePut(f Facade, store *ResourceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resource := "/" + r.PathValue("resource")
		_, status := f.CheckAccess(r.Context(), r.Method, resource, r.Header.Get("Authorization"), cookieValue(r, f.CookieName()))
		if status != http.StatusOK {
			writeError(w, http.StatusUnauthorized, "access denied")
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read request body")
			return
		}
		store.put(resource, body)
		w.WriteHeader(http.StatusOK)
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

type errorPayload struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorPayload{Error: message})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("response encode failed", slog.String("error", err.Error()))
	}
}
