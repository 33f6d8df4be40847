package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attendsheets/internal/domain"
)

var kinds = []struct {
	err    error
	status int
}{
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrExpired, http.StatusGone},
	{domain.ErrInvalidInput, http.StatusBadRequest},
	{domain.ErrConflict, http.StatusConflict},
	{domain.ErrUnauthorized, http.StatusForbidden},
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) (int, error) {
	if errors.Is(err, domain.ErrInvalidCredentials) {
		return http.StatusUnauthorized, domain.ErrUnauthorized
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status, k.err
		}
	}
	return http.StatusInternalServerError, domain.ErrInternal
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, kind := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": strings.TrimSuffix(err.Error(), ": "+kind.Error())})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
