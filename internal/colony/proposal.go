package colony

import (
	"fmt"
	"slices"
)

// ActionKind discriminates proposal payloads.
type ActionKind string

const (
	ActionSpawn        ActionKind = "spawn"
	ActionPolicyChange ActionKind = "policy_change"
)

// SpawnAction asks the collective to create an agent. Config is the raw JSON
// blob; it is only decoded when the proposal passes.
type SpawnAction struct {
	Type   AgentType `json:"type"`
	Role   string    `json:"role"`
	Config string    `json:"config"`
}

// PolicyChange asks the collective to set a named policy to a new value.
type PolicyChange struct {
	Name  PolicyName `json:"name"`
	Value float64    `json:"value"`
}

// Action is the payload of a proposal. Exactly one of Spawn or Policy is set.
type Action struct {
	Kind   ActionKind    `json:"kind"`
	Spawn  *SpawnAction  `json:"spawn,omitempty"`
	Policy *PolicyChange `json:"policy,omitempty"`
}

// NewSpawnAction builds a spawn payload.
func NewSpawnAction(t AgentType, role, config string) Action {
	return Action{Kind: ActionSpawn, Spawn: &SpawnAction{Type: t, Role: role, Config: config}}
}

// NewPolicyAction builds a policy-change payload.
func NewPolicyAction(name PolicyName, value float64) Action {
	return Action{Kind: ActionPolicyChange, Policy: &PolicyChange{Name: name, Value: value}}
}

// Describe renders the action for logs.
func (a Action) Describe() string {
	switch {
	case a.Kind == ActionSpawn && a.Spawn != nil:
		return fmt.Sprintf("spawn a '%s' %s agent", a.Spawn.Role, a.Spawn.Type)
	case a.Kind == ActionPolicyChange && a.Policy != nil:
		return fmt.Sprintf("set %s to %v", a.Policy.Name, a.Policy.Value)
	default:
		return "unknown action"
	}
}

func (a Action) clone() Action {
	out := a
	if a.Spawn != nil {
		s := *a.Spawn
		out.Spawn = &s
	}
	if a.Policy != nil {
		p := *a.Policy
		out.Policy = &p
	}
	return out
}

// Proposal is a pending motion put to a vote.
type Proposal struct {
	ID       string `json:"id"`
	Proposer string `json:"proposer,omitempty"`
	Action   Action `json:"action"`
	// Tally is the signed running total: +1 per affirmative vote, -1 per rejection.
	Tally       int      `json:"tally"`
	Voted       []string `json:"voted"`
	CreatedTick int64    `json:"createdTick"`
}

// HasVoted reports whether the agent already cast a vote on this proposal.
func (p *Proposal) HasVoted(agentID string) bool {
	return slices.Contains(p.Voted, agentID)
}

// Cast records a vote.
func (p *Proposal) Cast(agentID string, approve bool) {
	if approve {
		p.Tally++
	} else {
		p.Tally--
	}
	p.Voted = append(p.Voted, agentID)
}

// Clone returns a deep copy of the proposal.
func (p Proposal) Clone() Proposal {
	out := p
	out.Action = p.Action.clone()
	out.Voted = slices.Clone(p.Voted)
	return out
}
