package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authlink/internal/domain"
	"authlink/internal/service"
)

// AuthHandler mantiene dependencias para los endpoints de credenciales.
type AuthHandler struct {
	logger     *zap.Logger
	authServ   *service.AuthService
	reconcServ *service.ReconcileService
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, authServ *service.AuthService, reconcServ *service.ReconcileService) *AuthHandler {
	return &AuthHandler{
		logger:     logger,
		authServ:   authServ,
		reconcServ: reconcServ,
	}
}

func deviceInfo(c *gin.Context) domain.DeviceInfo {
	return domain.DeviceInfo{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required,email"`
		Password    string `json:"password" binding:"required"`
		DisplayName string `json:"display_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.authServ.Register(c.Request.Context(), req.Email, req.Password, req.DisplayName, deviceInfo(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	result, err := h.authServ.Login(c.Request.Context(), req.Email, req.Password, deviceInfo(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Refresh maneja POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	result, err := h.authServ.RefreshAccessToken(c.Request.Context(), req.RefreshToken, deviceInfo(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Logout maneja POST /auth/logout; requiere access token valido.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	if err := h.authServ.Logout(c.Request.Context(), req.RefreshToken, claims.AccountID, deviceInfo(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// ForgotPassword maneja POST /auth/password/forgot.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	message, err := h.authServ.RequestPasswordReset(c.Request.Context(), req.Email, deviceInfo(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// ResetPassword maneja POST /auth/password/reset.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.authServ.ResetPassword(c.Request.Context(), req.Token, req.NewPassword, deviceInfo(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

// VerifyEmail maneja POST /auth/verify-email.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.authServ.VerifyEmail(c.Request.Context(), req.Token, deviceInfo(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ExternalLogin maneja POST /auth/oauth. El cuerpo es la asercion ya
// verificada por el verificador del proveedor, aguas arriba de este handler.
func (h *AuthHandler) ExternalLogin(c *gin.Context) {
	var req struct {
		Provider        string     `json:"provider" binding:"required"`
		ProviderSubject string     `json:"provider_subject" binding:"required"`
		Email           string     `json:"email"`
		DisplayName     string     `json:"display_name"`
		AvatarURL       string     `json:"avatar_url"`
		AccessToken     string     `json:"access_token"`
		RefreshToken    string     `json:"refresh_token"`
		ExpiresAt       *time.Time `json:"expires_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	assertion := domain.ExternalAssertion{
		Provider:        req.Provider,
		ProviderSubject: req.ProviderSubject,
		Email:           req.Email,
		DisplayName:     req.DisplayName,
		AvatarURL:       req.AvatarURL,
		AccessToken:     req.AccessToken,
		RefreshToken:    req.RefreshToken,
		ExpiresAt:       req.ExpiresAt,
	}
	result, err := h.authServ.HandleExternalAssertion(c.Request.Context(), assertion, deviceInfo(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// UnlinkIdentity maneja DELETE /auth/oauth/:provider/:subject. Solo desvincula
// identidades de la cuenta autenticada.
func (h *AuthHandler) UnlinkIdentity(c *gin.Context) {
	provider := c.Param("provider")
	subject := c.Param("subject")
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	unlinked, err := h.reconcServ.UnlinkOwned(c.Request.Context(), claims.AccountID, provider, subject, deviceInfo(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unlinked": unlinked})
}

// Me maneja GET /auth/me; requiere access token valido.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	user, err := h.authServ.GetAccount(c.Request.Context(), claims.AccountID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// writeError mapea la taxonomia de errores de negocio a status HTTP.
func (h *AuthHandler) writeError(c *gin.Context, err error) {
	var status int
	switch domain.KindOf(err) {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindConflict:
		status = http.StatusConflict
	case domain.KindUnauthorized:
		status = http.StatusUnauthorized
	case domain.KindNotFound:
		status = http.StatusNotFound
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	var domErr *domain.Error
	body := gin.H{"error": err.Error()}
	if errors.As(err, &domErr) {
		body = gin.H{"error": domErr.Message}
		if len(domErr.Violations) > 0 {
			body["violations"] = domErr.Violations
		}
	}
	c.JSON(status, body)
}
