package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/go-cafe-pos/internal/auth"
	"github.com/go-chi/chi/v5"
)

type Authenticator interface {
	Login(ctx context.Context, email, password string) (auth.Session, error)
}

type AuthHandler struct {
	Auth    Authenticator
	Service string
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterPublic mounts the routes reachable without a token.
func (h *AuthHandler) RegisterPublic(r chi.Router) {
	r.Post("/auth/login", h.login)
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Get("/auth/me", h.me)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	sess, err := h.Auth.Login(ctx, req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: err.Error()})
		return
	}
	if err != nil {
		writeError(w, h.Service, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, id)
}
