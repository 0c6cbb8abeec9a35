package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type EmitRequest struct {
	To      string          `json:"to"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`

	// Timeout is the ack window in milliseconds.
	Timeout *int64 `json:"timeout,omitempty"`
}

type MembershipRequest struct {
	ID    string   `json:"id"`
	Rooms []string `json:"rooms"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

type controlPlane struct {
	orch *orch.Orchestrator
}

func (h *controlPlane) handleEmit(c *gin.Context) {
	var req EmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if req.To == "" || req.Event == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing to or event"})
		return
	}
	var timeout time.Duration
	if req.Timeout != nil {
		if *req.Timeout <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timeout"})
			return
		}
		timeout = time.Duration(*req.Timeout) * time.Millisecond
	}

	log.Debug().Str("module", "adapters.http").Str("to", req.To).Str("event", req.Event).Msg("emit requested")
	h.orch.Publish(c.Request.Context(), orch.EmitRequest{
		To:      domain.RoomName(req.To),
		Event:   req.Event,
		Payload: req.Payload,
		Timeout: timeout,
	})
	c.Status(http.StatusNoContent)
}

func (h *controlPlane) handleJoin(c *gin.Context) {
	req, ok := bindMembership(c)
	if !ok {
		return
	}
	h.orch.JoinRoom(domain.ConnID(req.ID), domain.RoomNames(req.Rooms...)...)
	c.Status(http.StatusNoContent)
}

func (h *controlPlane) handleLeave(c *gin.Context) {
	req, ok := bindMembership(c)
	if !ok {
		return
	}
	h.orch.LeaveRoom(domain.ConnID(req.ID), domain.RoomNames(req.Rooms...)...)
	c.Status(http.StatusNoContent)
}

func (h *controlPlane) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		Connections: h.orch.Registry.Count(),
	})
}

func bindMembership(c *gin.Context) (MembershipRequest, bool) {
	var req MembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid id"})
		return req, false
	}
	return req, true
}
