package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"attendsheets/internal/domain"
)

type startSessionRequest struct {
	ClassID          int64 `json:"class_id" binding:"required,gt=0"`
	RotationInterval int   `json:"rotation_interval" binding:"gte=0,lte=3600"`
}

type classRequest struct {
	ClassID int64 `json:"class_id" binding:"required,gt=0"`
}

type scanRequest struct {
	ClassID int64  `json:"class_id" binding:"required,gt=0"`
	Code    string `json:"code" binding:"required"`
}

func (h *Handler) StartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	who, _ := caller(c)
	snap, err := h.sessions.Start(c.Request.Context(), who, req.ClassID, time.Duration(req.RotationInterval)*time.Second)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": snap})
}

func (h *Handler) GetSession(c *gin.Context) {
	classID, ok := parseClassID(c.Param("classId"))
	if !ok {
		h.fail(c, fmt.Errorf("class id must be a positive integer: %w", domain.ErrInvalidInput))
		return
	}
	who, _ := caller(c)
	snap, err := h.sessions.Peek(c.Request.Context(), who, classID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !snap.Active {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": true, "session": snap})
}

func (h *Handler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	who, _ := caller(c)
	res, err := h.sessions.Scan(c.Request.Context(), who, req.ClassID, req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "attendance marked as present", "date": res.Date})
}

func (h *Handler) StopSession(c *gin.Context) {
	var req classRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	who, _ := caller(c)
	res, err := h.sessions.Stop(c.Request.Context(), who, req.ClassID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}
