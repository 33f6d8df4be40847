// Package handler exposes the verification flows and QR sessions over HTTP.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attendsheets/internal/attendance"
	"attendsheets/internal/auth"
	"attendsheets/internal/domain"
	"attendsheets/internal/verification"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

type Handler struct {
	flow      *verification.Flow
	sessions  *attendance.Engine
	issuer    *auth.Issuer
	accessTTL time.Duration
	log       *zap.Logger
}

func New(flow *verification.Flow, sessions *attendance.Engine, issuer *auth.Issuer, accessTTL time.Duration, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{flow: flow, sessions: sessions, issuer: issuer, accessTTL: accessTTL, log: log}
}

// Routes mounts the API on r. limit guards the unauthenticated code and login
// endpoints; pass nil to disable it.
func (h *Handler) Routes(r gin.IRouter, limit gin.HandlerFunc) {
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}

	pub := r.Group("/auth", limit)
	pub.POST("/signup", h.Signup)
	pub.POST("/verify-email", h.VerifyEmail)
	pub.POST("/resend-verification", h.ResendVerification)
	pub.POST("/login", h.Login)
	pub.POST("/request-password-reset", h.RequestPasswordReset)
	pub.POST("/reset-password", h.ResetPassword)

	authed := r.Group("", auth.BearerAuth(h.issuer))
	authed.GET("/auth/me", h.Me)
	authed.POST("/auth/request-change-password", h.RequestChangePassword)
	authed.POST("/auth/change-password", h.ChangePassword)

	teacher := authed.Group("/qr", auth.RequireRole(domain.RoleTeacher))
	teacher.POST("/start-session", h.StartSession)
	teacher.GET("/session/:classId", h.GetSession)
	teacher.POST("/stop-session", h.StopSession)

	authed.POST("/qr/scan", auth.RequireRole(domain.RoleStudent), h.Scan)
}

// Healthz reports every check; any failure turns the response into a 503.
func Healthz(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{"status": "ok"}
		for name, check := range checks {
			ok := check(c.Request.Context())
			body[name] = ok
			if !ok {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
			}
		}
		c.JSON(status, body)
	}
}

// caller rebuilds the identity carried by the bearer token.
func caller(c *gin.Context) (domain.Identity, bool) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		return domain.Identity{}, false
	}
	return domain.Identity{ID: claims.Subject, Email: claims.Email, Role: claims.Role}, true
}

func parseClassID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil && id > 0
}
