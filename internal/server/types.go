package server

import (
	"encoding/json"
	"time"

	"collective/internal/colony"
)

// APIResponse is the envelope for every JSON reply.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
	Running   bool      `json:"running"`
	Tick      int64     `json:"tick"`
}

// AgentDetail is an agent plus the capabilities derived from its type.
type AgentDetail struct {
	Agent        colony.Agent `json:"agent"`
	Capabilities []string     `json:"capabilities"`
}

// SpawnRequest proposes a new agent. Config may be a JSON object or a
// string holding one.
type SpawnRequest struct {
	Type   string          `json:"type" binding:"required"`
	Role   string          `json:"role" binding:"required"`
	Config json.RawMessage `json:"config,omitempty"`
}

// configBlob returns the config as the raw JSON text the kernel expects.
func (r SpawnRequest) configBlob() string {
	if len(r.Config) == 0 {
		return "{}"
	}
	var s string
	if err := json.Unmarshal(r.Config, &s); err == nil {
		return s
	}
	return string(r.Config)
}

// PolicyRequest proposes a policy change.
type PolicyRequest struct {
	Proposer string   `json:"proposer,omitempty"`
	Name     string   `json:"name" binding:"required"`
	Value    *float64 `json:"value" binding:"required"`
}

// ChatRequest relays a user message.
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// StreamMessage is one frame on the snapshot WebSocket.
type StreamMessage struct {
	Type      string           `json:"type"`
	Data      *colony.Snapshot `json:"data,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}
