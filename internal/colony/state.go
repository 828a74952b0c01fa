package colony

import (
	"fmt"
	"slices"
)

// Counters are the monotonic sequence numbers persisted alongside the state.
type Counters struct {
	Tick          int64 `json:"tick"`
	NextLogID     int64 `json:"nextLogId"`
	NextMessageID int64 `json:"nextMessageId"`
}

// State is the authoritative record of the collective. It is owned by the
// kernel; everything outside the kernel sees it only through snapshots.
type State struct {
	IsRunning     bool           `json:"isRunning"`
	Identity      string         `json:"identity"`
	Agents        []Agent        `json:"agents"`
	Proposals     []Proposal     `json:"proposals"`
	Policy        Policy         `json:"policies"`
	Logs          []LogEntry     `json:"logs"`
	Messages      []ChatMessage  `json:"messages"`
	AgentMessages []AgentMessage `json:"agentMessages"`
	Threats       []Threat       `json:"threats"`
	Graph         GraphData      `json:"graphData"`
	AveragePAS    float64        `json:"averagePas"`
	IsThinking    bool           `json:"isThinking"`
	Foresight     Foresight      `json:"foresight"`
}

// InitialIdentity is the display identity before the first tick.
const InitialIdentity = "A.L.I.C.E.-Σ-Ω-booting"

// NewState returns the state of a colony that has never run.
func NewState(policy Policy) State {
	return State{
		Identity:      InitialIdentity,
		Agents:        []Agent{},
		Proposals:     []Proposal{},
		Policy:        policy,
		Logs:          []LogEntry{},
		Messages:      []ChatMessage{},
		AgentMessages: []AgentMessage{},
		Threats:       []Threat{},
		Graph:         GraphData{Nodes: []Node{}, Edges: []Edge{}},
	}
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	out.Agents = make([]Agent, len(s.Agents))
	for i := range s.Agents {
		out.Agents[i] = s.Agents[i].Clone()
	}
	out.Proposals = make([]Proposal, len(s.Proposals))
	for i := range s.Proposals {
		out.Proposals[i] = s.Proposals[i].Clone()
	}
	out.Logs = slices.Clone(s.Logs)
	out.Messages = make([]ChatMessage, len(s.Messages))
	for i, m := range s.Messages {
		m.Sources = slices.Clone(m.Sources)
		out.Messages[i] = m
	}
	out.AgentMessages = slices.Clone(s.AgentMessages)
	out.Threats = slices.Clone(s.Threats)
	out.Graph = s.Graph.clone()
	return out
}

// Normalize replaces missing collections with empty ones. Blobs written by
// older builds lack some of them.
func (s *State) Normalize() {
	if s.Agents == nil {
		s.Agents = []Agent{}
	}
	for i := range s.Agents {
		if s.Agents[i].History == nil {
			s.Agents[i].History = []HistoryEntry{}
		}
		if s.Agents[i].Config == nil {
			s.Agents[i].Config = map[string]any{}
		}
	}
	if s.Proposals == nil {
		s.Proposals = []Proposal{}
	}
	for i := range s.Proposals {
		if s.Proposals[i].Voted == nil {
			s.Proposals[i].Voted = []string{}
		}
	}
	if s.Logs == nil {
		s.Logs = []LogEntry{}
	}
	if s.Messages == nil {
		s.Messages = []ChatMessage{}
	}
	if s.AgentMessages == nil {
		s.AgentMessages = []AgentMessage{}
	}
	if s.Threats == nil {
		s.Threats = []Threat{}
	}
	if s.Graph.Nodes == nil {
		s.Graph.Nodes = []Node{}
	}
	if s.Graph.Edges == nil {
		s.Graph.Edges = []Edge{}
	}
}

// AgentIndex returns the roster index of the agent, or -1.
func (s *State) AgentIndex(id string) int {
	return slices.IndexFunc(s.Agents, func(a Agent) bool { return a.ID == id })
}

// FindAgent returns the agent with the given id.
func (s *State) FindAgent(id string) (Agent, bool) {
	if i := s.AgentIndex(id); i >= 0 {
		return s.Agents[i], true
	}
	return Agent{}, false
}

// PendingPolicyChange reports whether a pending proposal already targets name.
func (s *State) PendingPolicyChange(name PolicyName) bool {
	return slices.ContainsFunc(s.Proposals, func(p Proposal) bool {
		return p.Action.Kind == ActionPolicyChange && p.Action.Policy != nil && p.Action.Policy.Name == name
	})
}

// Summary renders a one-paragraph status line used by the chat status intent
// and the CLI.
func (s State) Summary() string {
	status := "stopped"
	if s.IsRunning {
		status = "running"
	}
	return fmt.Sprintf("%s is %s with %d/%d agents (average PAS %.2f), %d pending proposals and %d intel reports.",
		s.Identity, status, len(s.Agents), s.Policy.MaxAgents, s.AveragePAS, len(s.Proposals), len(s.Threats))
}

// Snapshot is an immutable point-in-time copy of the colony published to
// consumers after every mutation.
type Snapshot struct {
	State    State    `json:"state"`
	Counters Counters `json:"counters"`
}
