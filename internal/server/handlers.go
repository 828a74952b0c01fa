package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"collective/internal/colony"
	"collective/internal/kernel"
	"collective/internal/logging"

	"github.com/gin-gonic/gin"
)

// statusFor maps kernel errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, kernel.ErrRunning),
		errors.Is(err, kernel.ErrBusy),
		errors.Is(err, kernel.ErrCapacityReached):
		return http.StatusConflict
	case errors.Is(err, kernel.ErrInvalidConfig),
		errors.Is(err, kernel.ErrUnknownPolicy),
		errors.Is(err, kernel.ErrInvalidPolicyValue),
		errors.Is(err, kernel.ErrUnknownAgentType):
		return http.StatusBadRequest
	case errors.Is(err, kernel.ErrNoSavedState):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logging.ServerError("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(code, APIResponse{Success: false, Error: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, APIResponse{
		Success: false,
		Error:   fmt.Sprintf("invalid request: %v", err),
	})
}

func ok(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: message, Data: data})
}

// =============================================================================
// READ
// =============================================================================

func (s *Server) handleHealth(c *gin.Context) {
	snap := s.kernel.Snapshot()
	ok(c, "", HealthResponse{
		Status:    "ok",
		Version:   Version,
		Timestamp: time.Now(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Running:   snap.State.IsRunning,
		Tick:      snap.Counters.Tick,
	})
}

func (s *Server) handleState(c *gin.Context) {
	ok(c, "", s.kernel.Snapshot())
}

func (s *Server) handleAgent(c *gin.Context) {
	snap := s.kernel.Snapshot()
	a, found := snap.State.FindAgent(c.Param("id"))
	if !found {
		c.JSON(http.StatusNotFound, APIResponse{Success: false, Error: "agent not found"})
		return
	}
	ok(c, "", AgentDetail{Agent: a, Capabilities: a.Capabilities()})
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func (s *Server) handleInit(c *gin.Context) {
	s.kernel.Init()
	ok(c, "kernel running", s.kernel.Snapshot())
}

func (s *Server) handleStop(c *gin.Context) {
	s.kernel.Stop()
	ok(c, "kernel stopped", s.kernel.Snapshot())
}

func (s *Server) handleStep(c *gin.Context) {
	if err := s.kernel.Step(); err != nil {
		fail(c, err)
		return
	}
	ok(c, "step executed", s.kernel.Snapshot())
}

// =============================================================================
// GOVERNANCE
// =============================================================================

func (s *Server) handleProposeSpawn(c *gin.Context) {
	var req SpawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := s.kernel.ProposeSpawnAgent(colony.AgentType(req.Type), req.Role, req.configBlob())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "proposal submitted", p)
}

func (s *Server) handleProposePolicy(c *gin.Context) {
	var req PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := s.kernel.ProposePolicyChange(req.Proposer, req.Name, *req.Value)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "proposal submitted", p)
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// handleChat waits for the reply. A client disconnect does not cancel the
// call; the reply still lands in the chat log.
func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.kernel.HandleUserMessage(context.WithoutCancel(c.Request.Context()), req.Message); err != nil {
		fail(c, err)
		return
	}
	ok(c, "", s.kernel.Snapshot().State.Messages)
}

func (s *Server) handleForesight(c *gin.Context) {
	if err := s.kernel.GenerateForesight(context.WithoutCancel(c.Request.Context())); err != nil {
		fail(c, err)
		return
	}
	ok(c, "", s.kernel.Snapshot().State.Foresight)
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func (s *Server) handleSave(c *gin.Context) {
	if err := s.kernel.Save(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	ok(c, "state saved", nil)
}

func (s *Server) handleLoad(c *gin.Context) {
	if err := s.kernel.Load(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	ok(c, "state restored", s.kernel.Snapshot())
}
