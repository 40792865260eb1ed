package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/arnavshah/assignment-engine-go/pkg/auth"
	"github.com/arnavshah/assignment-engine-go/pkg/config"
	"github.com/arnavshah/assignment-engine-go/pkg/database"
	apperrors "github.com/arnavshah/assignment-engine-go/pkg/errors"
	"github.com/arnavshah/assignment-engine-go/pkg/metrics"
)

const (
	ctxAPIKey       = "apiKey"
	ctxCongregation = "congregation"
	ctxUsername     = "username"
)

// Handler contains dependencies for the route handlers
type Handler struct {
	DB      *gorm.DB
	Auth    *auth.Authenticator
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// New wires a Handler; a nil logger or metrics collector is replaced by a no-op one
func New(db *gorm.DB, authenticator *auth.Authenticator, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Handler{DB: db, Auth: authenticator, Config: cfg, Logger: logger, Metrics: m}
}

// respondError writes the error envelope and aborts the chain
func respondError(c *gin.Context, err error) {
	appErr := apperrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(appErr.Status, gin.H{"error": appErr})
}

// bindError turns binding and validator failures into a VALIDATION_ERROR
func bindError(err error) *apperrors.Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed on %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
		}
	}
	return apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, strings.Join(msgs, "; "))
}

func bearer(c *gin.Context) string {
	token := c.GetHeader("Authorization")
	if len(token) > 7 && token[:7] == "Bearer " {
		token = token[7:]
	}
	return token
}

// AuthMiddleware verifies the JWT token for admin routes
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c)
		if token == "" {
			respondError(c, apperrors.Clone(apperrors.ErrUnauthorized, "authorization header required"))
			return
		}

		claims, err := h.Auth.VerifyToken(token)
		if err != nil {
			respondError(c, apperrors.Clone(apperrors.ErrUnauthorized, "invalid token"))
			return
		}

		c.Set(ctxUsername, claims.Username)
		c.Next()
	}
}

// APIKeyMiddleware verifies the congregation API key and enforces its daily request limit
func (h *Handler) APIKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := bearer(c)
		if key == "" {
			respondError(c, apperrors.Clone(apperrors.ErrUnauthorized, "API key required"))
			return
		}

		congregation, err := h.Auth.VerifyHMACKey(key)
		if err != nil {
			respondError(c, apperrors.ErrInvalidAPIKey)
			return
		}

		// Fetch or create API key record to track usage
		var apiKey database.APIKey
		err = h.DB.WithContext(c.Request.Context()).Unscoped().Where("key = ?", key).Limit(1).Find(&apiKey).Error
		if err != nil {
			respondError(c, err)
			return
		}
		if apiKey.DeletedAt.Valid {
			respondError(c, apperrors.Clone(apperrors.ErrUnauthorized, "API key revoked"))
			return
		}
		if apiKey.ID == 0 {
			apiKey = database.APIKey{
				Key:        key,
				KeyPreview: auth.KeyPreview(key),
				Name:       congregation,
				RateLimit:  h.Config.DefaultRateLimit,
			}
			if err := h.DB.WithContext(c.Request.Context()).Create(&apiKey).Error; err != nil {
				respondError(c, err)
				return
			}
		}

		used, err := database.RequestsOn(c.Request.Context(), h.DB, apiKey.ID, database.UsageDate(time.Now()))
		if err != nil {
			respondError(c, err)
			return
		}
		if apiKey.RateLimit > 0 && used >= apiKey.RateLimit {
			h.Logger.Warn("rate limit reached", zap.String("congregation", congregation), zap.Int("limit", apiKey.RateLimit))
			respondError(c, apperrors.ErrRateLimited)
			return
		}

		now := time.Now()
		if err := h.DB.WithContext(c.Request.Context()).Model(&apiKey).Update("last_used", now).Error; err != nil {
			h.Logger.Warn("failed to update key last_used", zap.Uint("key_id", apiKey.ID), zap.Error(err))
		} else {
			apiKey.LastUsed = &now
		}

		c.Set(ctxAPIKey, &apiKey)
		c.Set(ctxCongregation, congregation)
		c.Next()
	}
}

// MetricsMiddleware records request latency by route
func (h *Handler) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		h.Metrics.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

// RecordUsage records API usage for the calling key
func (h *Handler) RecordUsage(c *gin.Context, partCount, studentCount int) {
	apiKeyRaw, exists := c.Get(ctxAPIKey)
	if !exists {
		return
	}
	apiKey := apiKeyRaw.(*database.APIKey)

	err := database.RecordUsage(c.Request.Context(), h.DB, apiKey.ID, database.UsageDate(time.Now()), partCount, studentCount)
	if err != nil {
		h.Logger.Error("failed to record usage", zap.Uint("key_id", apiKey.ID), zap.Error(err))
	}
}

// Login handles admin login
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	var user database.MasterUser
	if err := h.DB.WithContext(c.Request.Context()).Where("username = ?", req.Username).First(&user).Error; err != nil {
		respondError(c, apperrors.ErrInvalidCredentials)
		return
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		respondError(c, apperrors.ErrInvalidCredentials)
		return
	}

	token, err := h.Auth.CreateToken(user.Username)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// GenerateKey issues an HMAC API key for a congregation
func (h *Handler) GenerateKey(c *gin.Context) {
	var req struct {
		Name      string `json:"name" binding:"required"`
		RateLimit int    `json:"rate_limit" binding:"gte=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	if strings.Contains(req.Name, ".") {
		respondError(c, apperrors.Clone(apperrors.ErrValidation, "name must not contain '.'"))
		return
	}

	if req.RateLimit == 0 {
		req.RateLimit = h.Config.DefaultRateLimit
	}

	key := h.Auth.GenerateHMACKey(req.Name)
	apiKey := database.APIKey{
		Key:        key,
		Name:       req.Name,
		KeyPreview: auth.KeyPreview(key),
		RateLimit:  req.RateLimit,
	}

	// A congregation always gets the same key, so re-issuing restores a revoked row.
	var existing database.APIKey
	db := h.DB.WithContext(c.Request.Context())
	if err := db.Unscoped().Where("key = ?", key).Limit(1).Find(&existing).Error; err != nil {
		respondError(c, err)
		return
	}
	var err error
	if existing.ID != 0 {
		apiKey.ID = existing.ID
		err = db.Unscoped().Model(&existing).Updates(map[string]interface{}{"deleted_at": nil, "rate_limit": req.RateLimit}).Error
	} else {
		err = db.Create(&apiKey).Error
	}
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "could not create key record"))
		return
	}

	h.Logger.Info("api key issued", zap.String("congregation", req.Name), zap.String("by", c.GetString(ctxUsername)))
	c.JSON(http.StatusCreated, gin.H{
		"id":   apiKey.ID,
		"name": req.Name,
		"key":  key,
	})
}

// ListKeys returns all API keys
func (h *Handler) ListKeys(c *gin.Context) {
	var keys []database.APIKey
	if err := h.DB.WithContext(c.Request.Context()).Order("id").Find(&keys).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// RevokeKey deletes an API key
func (h *Handler) RevokeKey(c *gin.Context) {
	res := h.DB.WithContext(c.Request.Context()).Delete(&database.APIKey{}, c.Param("id"))
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		respondError(c, apperrors.Clone(apperrors.ErrNotFound, "key not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Key revoked"})
}

// UpdateKeyLimit updates the rate limit for a key
func (h *Handler) UpdateKeyLimit(c *gin.Context) {
	var req struct {
		RateLimit int `json:"rate_limit" form:"rate_limit"`
	}

	// Try JSON first, then Form/Query
	if err := c.ShouldBindJSON(&req); err != nil {
		if err := c.ShouldBindQuery(&req); err != nil {
			respondError(c, apperrors.Clone(apperrors.ErrValidation, "rate_limit is required"))
			return
		}
	}

	if req.RateLimit <= 0 {
		respondError(c, apperrors.Clone(apperrors.ErrValidation, "invalid rate limit"))
		return
	}

	res := h.DB.WithContext(c.Request.Context()).Model(&database.APIKey{}).Where("id = ?", c.Param("id")).Update("rate_limit", req.RateLimit)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		respondError(c, apperrors.Clone(apperrors.ErrNotFound, "key not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rate limit updated successfully"})
}

// GetUsage returns usage stats for a key
func (h *Handler) GetUsage(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperrors.Clone(apperrors.ErrNotFound, "key not found"))
		return
	}
	usage, err := database.UsageHistory(c.Request.Context(), h.DB, uint(id), 30)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage": usage})
}
