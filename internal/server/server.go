package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"postline/internal/app"
	"postline/internal/ratelimit"
	"postline/internal/util"
	"postline/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App

	// Redis-backed rate limiting for the public auth endpoints.
	// Leaving RedisAddr empty disables limiting (tests, local runs).
	RedisAddr                  string
	RedisPassword              string
	RegisterRateLimitPerMinute int
	LoginRateLimitPerMinute    int

	TrustedProxies []string
}

// Server exposes the HTTP endpoints for users and posts.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	registerLimiter *ratelimit.FixedWindowLimiter
	loginLimiter    *ratelimit.FixedWindowLimiter
	trustedProxies  *util.TrustedProxies
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		trustedProxies: trusted,
	}
	if cfg.RedisAddr != "" {
		newLimiter := func(name string, limit int, fallback int) (*ratelimit.FixedWindowLimiter, error) {
			if limit <= 0 {
				limit = fallback
			}
			limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "postline:ratelimit:"+name, limit, time.Minute)
			if err != nil {
				return nil, fmt.Errorf("init %s limiter: %w", name, err)
			}
			return limiter, nil
		}
		if s.registerLimiter, err = newLimiter("register", cfg.RegisterRateLimitPerMinute, 5); err != nil {
			return nil, err
		}
		if s.loginLimiter, err = newLimiter("login", cfg.LoginRateLimitPerMinute, 10); err != nil {
			return nil, err
		}
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler wrapped in the middleware chain.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog("postline", s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// public
	s.mux.HandleFunc("/users/register", s.handleRegister)
	s.mux.HandleFunc("/users/login", s.handleLogin)

	// authenticated
	s.mux.Handle("/users/logout", s.authenticated(s.handleLogout))
	s.mux.Handle("/users", s.authenticated(s.handleUsers))
	s.mux.Handle("/users/friends", s.authenticated(s.handleFriends))
	s.mux.Handle("/users/", s.authenticated(s.handleUserByID))
	s.mux.Handle("/posts/create", s.authenticated(s.handleCreatePost))
	s.mux.Handle("/posts", s.authenticated(s.handlePosts))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// session guard
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, ok := s.app.UserFromToken(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

// public handlers

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allow(s.registerLimiter, r) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	summary, err := s.app.Register(req.Name, req.Username, req.Email, req.Password, req.VerifyPassword)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allow(s.loginLimiter, r) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	token, user, err := s.app.Login(req.identifier(), req.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// authenticated handlers

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if err := s.app.Logout(user); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	users, err := s.app.ListUsers()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	raw := strings.TrimPrefix(r.URL.Path, "/users/")
	if raw == "" || strings.Contains(raw, "/") {
		http.NotFound(w, r)
		return
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	targetID := uint(id)
	switch r.Method {
	case http.MethodPatch:
		var req updateUserRequest
		if !decodeBody(w, r, &req) {
			return
		}
		summary, err := s.app.UpdateUser(user, targetID, app.UserUpdate{
			Name:     req.Name,
			Username: req.Username,
			Email:    req.Email,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	case http.MethodDelete:
		if err := s.app.DeleteUser(user, targetID); err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleFriends(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodPost:
		var req addFriendRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := s.app.AddFriend(user, req.FriendID); err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case http.MethodGet:
		friends, err := s.app.ListFriends(user)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, friends)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req createPostRequest
	if !decodeBody(w, r, &req) {
		return
	}
	post, err := s.app.CreatePost(r.Context(), user, req.Caption, req.ImageData)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	posts, err := s.app.ListPosts(r.Context(), user)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) allow(limiter *ratelimit.FixedWindowLimiter, r *http.Request) bool {
	if limiter == nil {
		return true
	}
	return limiter.Allow(util.ClientIP(r, s.trustedProxies))
}

// request/response types

type registerRequest struct {
	Name           string `json:"name"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	VerifyPassword string `json:"verifyPassword"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// identifier accepts the canonical field with email/username fallbacks
// so older clients keep working.
func (r loginRequest) identifier() string {
	if r.Identifier != "" {
		return r.Identifier
	}
	if r.Email != "" {
		return r.Email
	}
	return r.Username
}

type loginResponse struct {
	Token string             `json:"token"`
	User  domain.UserSummary `json:"user"`
}

type updateUserRequest struct {
	Name     *string `json:"name"`
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

type addFriendRequest struct {
	FriendID uint `json:"friendId"`
}

type createPostRequest struct {
	Caption   string `json:"caption"`
	ImageData string `json:"imageData,omitempty"`
}

// helpers

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatusFor(err)
	if status == http.StatusInternalServerError {
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func httpStatusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrWrongPassword):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, app.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrEmailAndUsernameTaken),
		errors.Is(err, app.ErrEmailTaken),
		errors.Is(err, app.ErrUsernameTaken),
		errors.Is(err, app.ErrFieldsRequired),
		errors.Is(err, app.ErrPasswordMismatch),
		errors.Is(err, app.ErrInvalidCredentials),
		errors.Is(err, app.ErrCaptionRequired),
		errors.Is(err, app.ErrInvalidImage),
		errors.Is(err, app.ErrImageUnsupported),
		errors.Is(err, app.ErrSelfFriend):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
