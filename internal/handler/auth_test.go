package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/lesson-runner/internal/auth"
	"github.com/sakif/lesson-runner/internal/handler"
)

func newAuthHandler(t *testing.T, passphrase string) (*handler.AuthHandler, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	pp := auth.NewPassphraseWithCost(bcrypt.MinCost)
	hash := ""
	if passphrase != "" {
		hash, err = pp.Hash(passphrase)
		require.NoError(t, err)
	}
	return handler.NewAuthHandler(tokens, pp, hash, testLogger()), tokens
}

func postToken(h *handler.AuthHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	h.HandleToken(rr, req)
	return rr
}

func TestAuthHandler_HandleToken(t *testing.T) {
	h, tokens := newAuthHandler(t, "open sesame")

	rr := postToken(h, `{"passphrase":"open sesame","client":"ci","scope":"read"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		Token     string `json:"token"`
		TokenType string `json:"tokenType"`
		Scope     string `json:"scope"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "Bearer", body.TokenType)
	assert.Equal(t, auth.ScopeRead, body.Scope)

	claims, err := tokens.Validate(body.Token)
	require.NoError(t, err)
	assert.Equal(t, "ci", claims.Subject)
}

func TestAuthHandler_DefaultsToRunScope(t *testing.T) {
	h, tokens := newAuthHandler(t, "open sesame")

	rr := postToken(h, `{"passphrase":"open sesame"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct{ Token string }
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	claims, err := tokens.Validate(body.Token)
	require.NoError(t, err)
	assert.Equal(t, "anonymous", claims.Subject)
	assert.Equal(t, auth.ScopeRun, claims.Scope)
}

func TestAuthHandler_Rejects(t *testing.T) {
	h, _ := newAuthHandler(t, "open sesame")
	disabled, _ := newAuthHandler(t, "")

	tests := []struct {
		name string
		h    *handler.AuthHandler
		body string
		want int
	}{
		{"wrong passphrase", h, `{"passphrase":"nope"}`, http.StatusUnauthorized},
		{"missing passphrase", h, `{}`, http.StatusBadRequest},
		{"bad scope", h, `{"passphrase":"open sesame","scope":"admin"}`, http.StatusBadRequest},
		{"malformed", h, `{"passphrase":`, http.StatusBadRequest},
		{"issuance disabled", disabled, `{"passphrase":"anything"}`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postToken(tt.h, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			assert.NotContains(t, rr.Body.String(), `"token"`)
		})
	}
}
