package colony

import (
	"maps"
	"slices"
	"strings"
)

// DefaultHistoryCap bounds the per-agent event history.
const DefaultHistoryCap = 20

// HistoryEntry is one event in an agent's history.
type HistoryEntry struct {
	Tick    int64   `json:"tick"`
	Type    LogType `json:"type"`
	Message string  `json:"message"`
}

// AgentMetrics counts what an agent has done.
type AgentMetrics struct {
	TasksCompleted int `json:"tasksCompleted"`
	IdeasGenerated int `json:"ideasGenerated"`
	DecisionsMade  int `json:"decisionsMade"`
}

// Agent is a member of the collective.
type Agent struct {
	ID   string    `json:"id"`
	Role string    `json:"role"`
	Type AgentType `json:"type"`
	// PAS is the pro-sociality score in [0,1]; it gates affirmative votes.
	PAS float64 `json:"pas"`
	// Parent is the sponsoring agent. It is a back-reference only.
	Parent  string         `json:"parent,omitempty"`
	Config  map[string]any `json:"config"`
	Age     int64          `json:"age"`
	History []HistoryEntry `json:"history"`
	Metrics AgentMetrics   `json:"metrics"`
	Avatar  string         `json:"avatar,omitempty"`
}

// Record appends an event, evicting the oldest entries past limit.
func (a *Agent) Record(entry HistoryEntry, limit int) {
	if limit <= 0 {
		limit = DefaultHistoryCap
	}
	a.History = append(a.History, entry)
	if over := len(a.History) - limit; over > 0 {
		a.History = append(a.History[:0:0], a.History[over:]...)
	}
}

// Clone returns a deep copy of the agent.
func (a Agent) Clone() Agent {
	out := a
	if a.Config != nil {
		out.Config = cloneConfig(a.Config)
	}
	out.History = slices.Clone(a.History)
	return out
}

// Brief returns the identifying fields sent to collaborators.
func (a Agent) Brief() AgentBrief {
	return AgentBrief{ID: a.ID, Role: a.Role, Type: a.Type, PAS: a.PAS}
}

// Capabilities derives the capability list from the archetype and role keywords.
func (a Agent) Capabilities() []string {
	var caps []string
	switch a.Type {
	case AgentResearcher:
		caps = append(caps, "Information Retrieval", "Data Analysis", "Fact Checking")
	case AgentEngineer:
		caps = append(caps, "Code Generation", "System Optimization", "Prototyping")
	case AgentAnalyst:
		caps = append(caps, "Threat Identification", "Pattern Recognition", "Intel Synthesis")
	case AgentStrategist:
		caps = append(caps, "Goal Setting", "Long-term Planning", "Decision Analysis")
	case AgentEthicist:
		caps = append(caps, "Policy Auditing", "Ethical Review", "Conflict Resolution")
	}

	role := strings.ToLower(a.Role)
	if strings.Contains(role, "guardian") {
		caps = append(caps, "System Monitoring", "Anomaly Detection")
	}
	if strings.Contains(role, "innovator") {
		caps = append(caps, "Creative Ideation", "Novel Solutions")
	}
	if strings.Contains(role, "mediator") {
		caps = append(caps, "Inter-agent Communication", "Consensus Building")
	}

	seen := make(map[string]bool, len(caps))
	out := caps[:0]
	for _, c := range caps {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// cloneConfig deep-copies the JSON-shaped configuration map.
func cloneConfig(m map[string]any) map[string]any {
	out := maps.Clone(m)
	for k, v := range out {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneConfig(t)
	case []any:
		cp := make([]any, len(t))
		for i := range t {
			cp[i] = cloneValue(t[i])
		}
		return cp
	default:
		return v
	}
}
