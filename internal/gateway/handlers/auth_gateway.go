package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"syntra-floor/internal/logger"
	"syntra-floor/internal/utils"
)

type AuthHTTPHandler struct {
	jwt       *utils.JWT
	deviceKey string
	ttl       time.Duration
	log       *logger.Logger
}

func NewAuthHTTPHandler(j *utils.JWT, deviceKey string, ttl time.Duration, log *logger.Logger) *AuthHTTPHandler {
	return &AuthHTTPHandler{jwt: j, deviceKey: deviceKey, ttl: ttl, log: log}
}

type DeviceLoginRequest struct {
	DeviceID  string `json:"device_id" binding:"required"`
	Name      string `json:"name"`
	DeviceKey string `json:"device_key" binding:"required"`
}

// DeviceLogin issues a token to a floor device presenting the shared
// enrolment key.
func (h *AuthHTTPHandler) DeviceLogin(c *gin.Context) {
	var req DeviceLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	if h.deviceKey == "" || subtle.ConstantTimeCompare([]byte(req.DeviceKey), []byte(h.deviceKey)) != 1 {
		h.log.LogSecurity("LOGIN_FAILED", "Device "+req.DeviceID+" presented an invalid key from "+c.ClientIP())
		c.JSON(http.StatusUnauthorized, errorResponse("Invalid device key"))
		return
	}

	token, exp, err := h.jwt.GenerateToken(req.DeviceID, req.Name, h.ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to issue token"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Login successful", map[string]interface{}{
		"token":      token,
		"expires_at": exp,
		"device_id":  req.DeviceID,
	}))
}
