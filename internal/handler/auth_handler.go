// Package handler contains the HTTP controller layer.
package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"finrag-go/internal/config"
	"finrag-go/pkg/log"
	"finrag-go/pkg/token"
)

// AuthHandler exchanges the configured API key for an operator JWT.
type AuthHandler struct {
	jwtManager *token.JWTManager
	cfg        config.JWTConfig
}

// NewAuthHandler creates a new AuthHandler instance.
func NewAuthHandler(jwtManager *token.JWTManager, cfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{jwtManager: jwtManager, cfg: cfg}
}

// TokenRequest is the request body for the token endpoint.
type TokenRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

// Token issues an operator token when the API key matches.
func (h *AuthHandler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload: api_key is required"})
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.cfg.APIKey)) != 1 {
		log.Warnf("[AuthHandler] token request with wrong api key")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}

	tokenString, err := h.jwtManager.GenerateToken("operator")
	if err != nil {
		log.Errorf("[AuthHandler] failed to generate token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"token": tokenString},
	})
}
