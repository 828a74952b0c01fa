// Package colony defines the data model of the agent collective: agents,
// proposals, the policy record and the aggregate colony state that the kernel
// owns and publishes as snapshots.
package colony

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAgentType is returned when parsing an archetype outside the closed set.
var ErrUnknownAgentType = errors.New("unknown agent type")

// AgentType is the archetype of an agent.
type AgentType string

const (
	AgentResearcher AgentType = "Researcher"
	AgentEngineer   AgentType = "Engineer"
	AgentAnalyst    AgentType = "Analyst"
	AgentStrategist AgentType = "Strategist"
	AgentEthicist   AgentType = "Ethicist"
)

// AgentTypes lists every archetype in display order.
var AgentTypes = []AgentType{
	AgentResearcher,
	AgentEngineer,
	AgentAnalyst,
	AgentStrategist,
	AgentEthicist,
}

// ParseAgentType resolves a case-insensitive archetype name.
func ParseAgentType(s string) (AgentType, error) {
	for _, t := range AgentTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAgentType, s)
}

// SenderType classifies who wrote a chat message.
type SenderType string

const (
	SenderUser   SenderType = "USER"
	SenderAgent  SenderType = "AGENT"
	SenderSystem SenderType = "SYSTEM"
)

// KernelSender is the display name used for system chat messages.
const KernelSender = "A.L.I.C.E. KERNEL"

// LogType tags kernel log entries.
type LogType string

const (
	LogInfo     LogType = "info"
	LogSuccess  LogType = "success"
	LogWarning  LogType = "warning"
	LogError    LogType = "error"
	LogProposal LogType = "proposal"
	LogSpawn    LogType = "spawn"
	LogVote     LogType = "vote"
	LogIntel    LogType = "intel"
)

// ThreatLevel grades an intel report.
type ThreatLevel string

const (
	ThreatLow      ThreatLevel = "Low"
	ThreatMedium   ThreatLevel = "Medium"
	ThreatHigh     ThreatLevel = "High"
	ThreatCritical ThreatLevel = "Critical"
)

// ThreatLevels lists levels from least to most severe.
var ThreatLevels = []ThreatLevel{ThreatLow, ThreatMedium, ThreatHigh, ThreatCritical}

// LogEntry is one line of the kernel log.
type LogEntry struct {
	ID      int64   `json:"id"`
	Type    LogType `json:"type"`
	Message string  `json:"message"`
}

// Citation is a grounding source attached to a factual answer.
type Citation struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// ChatMessage is a message in the user-facing chat log.
type ChatMessage struct {
	ID         int64      `json:"id"`
	Message    string     `json:"message"`
	Sender     string     `json:"sender"`
	SenderType SenderType `json:"senderType"`
	Sources    []Citation `json:"sources,omitempty"`
}

// AgentMessage is an agent-to-agent message in the comms log.
type AgentMessage struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Content string `json:"content"`
	Tick    int64  `json:"tick"`
}

// Threat is an intel report produced by an Analyst agent.
type Threat struct {
	ID          string      `json:"id"`
	Level       ThreatLevel `json:"level"`
	Description string      `json:"description"`
	Source      string      `json:"source"`
	Tick        int64       `json:"tick"`
}

// Foresight tracks the state of the most recent foresight video request.
type Foresight struct {
	Loading  bool   `json:"loading"`
	VideoURI string `json:"videoUri,omitempty"`
	Error    string `json:"error,omitempty"`
}
