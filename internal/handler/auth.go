package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/lesson-runner/internal/apperror"
	"github.com/sakif/lesson-runner/internal/auth"
)

// AuthHandler exchanges the server passphrase for a bearer token.
type AuthHandler struct {
	tokens     *auth.TokenService
	passphrase *auth.Passphrase
	hash       string
	logger     *slog.Logger
}

// NewAuthHandler creates an AuthHandler. hash is the bcrypt hash from
// server.passphrase_hash; an empty hash disables token issuance.
func NewAuthHandler(tokens *auth.TokenService, passphrase *auth.Passphrase, hash string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		tokens:     tokens,
		passphrase: passphrase,
		hash:       hash,
		logger:     logger,
	}
}

type tokenRequest struct {
	Passphrase string `json:"passphrase"`
	Client     string `json:"client"`
	Scope      string `json:"scope"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	Scope     string    `json:"scope"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// HandleToken serves POST /auth/token.
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Passphrase == "" {
		writeError(w, apperror.ValidationFailed("passphrase", "passphrase is required"))
		return
	}
	if h.hash == "" {
		writeError(w, apperror.Unauthorized("token issuance is disabled on this server"))
		return
	}

	if err := h.passphrase.Verify(h.hash, req.Passphrase); err != nil {
		if !errors.Is(err, auth.ErrWrongPassphrase) {
			h.logger.Error("passphrase check failed", slog.String("error", err.Error()))
		}
		h.logger.Warn("token request rejected", slog.String("client", req.Client))
		writeError(w, apperror.Unauthorized("wrong passphrase"))
		return
	}

	client := strings.TrimSpace(req.Client)
	if client == "" {
		client = "anonymous"
	}
	scope := req.Scope
	if scope == "" {
		scope = auth.ScopeRun
	}

	token, expires, err := h.tokens.Issue(client, scope)
	if err != nil {
		writeError(w, apperror.ValidationFailed("scope", err.Error()))
		return
	}

	h.logger.Info("token issued", slog.String("client", client), slog.String("scope", scope))
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		TokenType: "Bearer",
		Scope:     scope,
		ExpiresAt: expires,
	})
}
