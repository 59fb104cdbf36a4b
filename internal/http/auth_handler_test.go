package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authlink/internal/repository"
	"authlink/internal/secrets"
	"authlink/internal/service"
)

type noopSender struct{}

func (noopSender) SendVerificationEmail(_ context.Context, _, _ string) error  { return nil }
func (noopSender) SendPasswordResetEmail(_ context.Context, _, _ string) error { return nil }
func (noopSender) SendWelcomeEmail(_ context.Context, _, _ string) error       { return nil }

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	audit := service.NewAuditRecorder(logger, store.Repos().AuditEvents)
	tokens := service.NewTokenService("test-secret", "authlink", "authlink", 15*time.Minute, time.Hour)
	hasher := secrets.NewHasher(4)
	reconciler := service.NewReconcileService(logger, store, audit)
	authSvc := service.NewAuthService(logger, store, tokens, hasher, reconciler, noopSender{}, audit, nil)
	handler := NewAuthHandler(logger, authSvc, reconciler)
	return NewRouter(logger, tokens, handler)
}

func doJSON(router *gin.Engine, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterEndpoint(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(router, http.MethodPost, "/auth/register", map[string]string{
		"email":        "a@x.com",
		"password":     "Str0ng!pass",
		"display_name": "Alice",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// Mismo email otra vez: conflicto.
	rec = doJSON(router, http.MethodPost, "/auth/register", map[string]string{
		"email":    "a@x.com",
		"password": "0ther$Trong",
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestRegisterEndpointWeakPassword(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(router, http.MethodPost, "/auth/register", map[string]string{
		"email":    "a@x.com",
		"password": "weak1234",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var body struct {
		Error      string   `json:"error"`
		Violations []string `json:"violations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Violations) != 2 {
		t.Fatalf("expected both violations in the response, got %v", body.Violations)
	}
}

func TestLoginEndpointUnauthorized(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(router, http.MethodPost, "/auth/login", map[string]string{
		"email":    "nobody@x.com",
		"password": "Whatever1!",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLoginRefreshAndMe(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(router, http.MethodPost, "/auth/register", map[string]string{
		"email":    "a@x.com",
		"password": "Str0ng!pass",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d", rec.Code)
	}

	rec = doJSON(router, http.MethodPost, "/auth/login", map[string]string{
		"email":    "a@x.com",
		"password": "Str0ng!pass",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d: %s", rec.Code, rec.Body.String())
	}
	var session struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.AccessToken == "" || session.TokenType != "Bearer" {
		t.Fatalf("unexpected session payload: %s", rec.Body.String())
	}

	// Sin token el endpoint protegido rechaza.
	rec = doJSON(router, http.MethodGet, "/auth/me", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("me without token: %d", rec.Code)
	}

	rec = doJSON(router, http.MethodGet, "/auth/me", nil, map[string]string{
		"Authorization": "Bearer " + session.AccessToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("me with token: %d: %s", rec.Code, rec.Body.String())
	}

	// Un refresh token no pasa el middleware de access.
	rec = doJSON(router, http.MethodGet, "/auth/me", nil, map[string]string{
		"Authorization": "Bearer " + session.RefreshToken,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh token must not authorize requests: %d", rec.Code)
	}

	rec = doJSON(router, http.MethodPost, "/auth/refresh", map[string]string{
		"refresh_token": session.RefreshToken,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: %d: %s", rec.Code, rec.Body.String())
	}

	// El token viejo quedo rotado.
	rec = doJSON(router, http.MethodPost, "/auth/refresh", map[string]string{
		"refresh_token": session.RefreshToken,
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("rotated token should be rejected: %d", rec.Code)
	}
}

func TestExternalLoginAndUnlinkEndpoints(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(router, http.MethodPost, "/auth/oauth", map[string]string{
		"provider":         "google",
		"provider_subject": "sub-1",
		"email":            "a@x.com",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("oauth login: %d: %s", rec.Code, rec.Body.String())
	}
	var session struct {
		AccessToken  string `json:"access_token"`
		IsNewAccount bool   `json:"is_new_account"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if !session.IsNewAccount {
		t.Fatalf("first assertion should create the account")
	}

	// Otra cuenta autenticada no puede desvincular una identidad ajena.
	rec = doJSON(router, http.MethodPost, "/auth/oauth", map[string]string{
		"provider":         "github",
		"provider_subject": "sub-2",
		"email":            "b@x.com",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second oauth login: %d: %s", rec.Code, rec.Body.String())
	}
	var otherSession struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &otherSession); err != nil {
		t.Fatalf("decode other session: %v", err)
	}
	rec = doJSON(router, http.MethodDelete, "/auth/oauth/google/sub-1", nil, map[string]string{
		"Authorization": "Bearer " + otherSession.AccessToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("foreign unlink: %d: %s", rec.Code, rec.Body.String())
	}
	var unlink struct {
		Unlinked bool `json:"unlinked"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &unlink); err != nil {
		t.Fatalf("decode unlink: %v", err)
	}
	if unlink.Unlinked {
		t.Fatalf("foreign identity must not be unlinked")
	}

	auth := map[string]string{"Authorization": "Bearer " + session.AccessToken}
	rec = doJSON(router, http.MethodDelete, "/auth/oauth/google/sub-1", nil, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("unlink: %d: %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &unlink); err != nil {
		t.Fatalf("decode unlink: %v", err)
	}
	if !unlink.Unlinked {
		t.Fatalf("expected unlinked=true")
	}

	// Repetir el unlink no es error, solo reporta not linked.
	rec = doJSON(router, http.MethodDelete, "/auth/oauth/google/sub-1", nil, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat unlink: %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &unlink); err != nil {
		t.Fatalf("decode unlink: %v", err)
	}
	if unlink.Unlinked {
		t.Fatalf("expected unlinked=false on repeat")
	}
}
