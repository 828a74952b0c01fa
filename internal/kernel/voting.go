package kernel

import (
	"fmt"

	"collective/internal/colony"
	"collective/internal/logging"
)

// =============================================================================
// PROPOSAL INTAKE
// =============================================================================

// ProposeSpawnAgent submits a user proposal to spawn an agent. It is rejected
// when the roster is already at capacity. The config blob is only decoded if
// the proposal passes.
func (k *Kernel) ProposeSpawnAgent(t colony.AgentType, role, configJSON string) (colony.Proposal, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	parsed, err := colony.ParseAgentType(string(t))
	if err != nil {
		k.pushLog(colony.LogError, fmt.Sprintf("[ERROR] Unknown agent type %q. Cannot create proposal.", t))
		logging.VoteError("spawn proposal rejected: %v", err)
		k.publishLocked()
		return colony.Proposal{}, err
	}

	p, err := k.proposeSpawnLocked("", parsed, role, configJSON)
	if err != nil {
		k.pushLog(colony.LogError, "[ERROR] Max agent limit reached. Cannot create proposal.")
		logging.VoteError("spawn proposal rejected: %v", err)
		k.publishLocked()
		return colony.Proposal{}, err
	}
	k.publishLocked()
	return p, nil
}

// ProposePolicyChange submits a proposal to set a named policy. proposer may
// be empty for user submissions.
func (k *Kernel) ProposePolicyChange(proposer, name string, value float64) (colony.Proposal, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	p, err := k.proposePolicyLocked(proposer, name, value)
	if err != nil {
		k.pushLog(colony.LogError, fmt.Sprintf("[ERROR] Policy proposal rejected: %v.", err))
		logging.VoteError("policy proposal rejected: %v", err)
		k.publishLocked()
		return colony.Proposal{}, err
	}
	k.publishLocked()
	return p, nil
}

func (k *Kernel) proposeSpawnLocked(proposer string, t colony.AgentType, role, configJSON string) (colony.Proposal, error) {
	if len(k.state.Agents) >= k.state.Policy.MaxAgents {
		return colony.Proposal{}, fmt.Errorf("%w: %d/%d agents", ErrCapacityReached, len(k.state.Agents), k.state.Policy.MaxAgents)
	}

	p := k.newProposal(proposer, colony.NewSpawnAction(t, role, configJSON))
	k.pushLog(colony.LogProposal, fmt.Sprintf("[PROPOSAL] Proposal %s submitted to spawn a '%s' agent. Voting begins.", p.ID, role))
	logging.Vote("proposal %s: %s (proposer=%q)", p.ID, p.Action.Describe(), proposer)
	return p.Clone(), nil
}

func (k *Kernel) proposePolicyLocked(proposer, name string, value float64) (colony.Proposal, error) {
	pn, err := colony.ParsePolicyName(name)
	if err != nil {
		return colony.Proposal{}, err
	}
	if _, err := k.state.Policy.With(pn, value, len(k.state.Agents)); err != nil {
		return colony.Proposal{}, err
	}

	p := k.newProposal(proposer, colony.NewPolicyAction(pn, value))
	k.pushLog(colony.LogProposal, fmt.Sprintf("[PROPOSAL] Proposal %s submitted to %s. Voting begins.", p.ID, p.Action.Describe()))
	logging.Vote("proposal %s: %s (proposer=%q)", p.ID, p.Action.Describe(), proposer)
	return p.Clone(), nil
}

func (k *Kernel) newProposal(proposer string, action colony.Action) *colony.Proposal {
	k.state.Proposals = append(k.state.Proposals, colony.Proposal{
		ID:          k.newID("prop"),
		Proposer:    proposer,
		Action:      action,
		Voted:       []string{},
		CreatedTick: k.counters.Tick,
	})
	k.metrics.SetColony(len(k.state.Agents), len(k.state.Proposals), k.state.AveragePAS)
	return &k.state.Proposals[len(k.state.Proposals)-1]
}

// =============================================================================
// RESOLUTION
// =============================================================================

// resolveProposals runs one voting round over every pending proposal in
// submission order. A proposal passes when its tally reaches the quorum for
// the roster size at the start of its evaluation, and fails once every agent
// has voted without reaching it. With no agents the quorum is zero, so an
// unvoted proposal passes.
func (k *Kernel) resolveProposals() {
	if len(k.state.Proposals) == 0 {
		return
	}

	// Executing a proposal never adds proposals, so iterating the current
	// set and rebuilding it is safe.
	current := k.state.Proposals
	k.state.Proposals = make([]colony.Proposal, 0, len(current))

	for i := range current {
		p := &current[i]
		needed := k.state.Policy.Quorum(len(k.state.Agents))

		for j := range k.state.Agents {
			a := &k.state.Agents[j]
			if p.HasVoted(a.ID) || k.rng.Float64() >= k.cfg.VoteProbability {
				continue
			}
			approve := a.PAS >= k.state.Policy.MinPAS
			p.Cast(a.ID, approve)
			a.Metrics.DecisionsMade++

			verb := "rejected"
			if approve {
				verb = "approved"
			}
			k.pushLog(colony.LogVote, fmt.Sprintf("[VOTE] Agent %s %s proposal %s.", a.ID, verb, p.ID))
			k.record(j, colony.LogVote, fmt.Sprintf("Voted: %s proposal %s", verb, p.ID))
			logging.VoteDebug("agent %s %s %s (pas=%.2f, tally=%d)", a.ID, verb, p.ID, a.PAS, p.Tally)
		}

		switch {
		case p.Tally >= needed:
			k.execute(p)
			k.pushLog(colony.LogSuccess, fmt.Sprintf("[VOTE] PASSED: Proposal %s approved with %d votes.", p.ID, p.Tally))
			logging.Vote("proposal %s passed (%d/%d)", p.ID, p.Tally, needed)
			k.metrics.IncProposalResolved(string(p.Action.Kind), "passed")
		case len(p.Voted) >= len(k.state.Agents):
			k.pushLog(colony.LogWarning, fmt.Sprintf("[VOTE] FAILED: Proposal %s failed with %d/%d votes.", p.ID, p.Tally, needed))
			logging.Vote("proposal %s failed (%d/%d)", p.ID, p.Tally, needed)
			k.metrics.IncProposalResolved(string(p.Action.Kind), "failed")
		default:
			k.state.Proposals = append(k.state.Proposals, *p)
		}
	}
}

// execute applies a passed proposal. Failures are logged; the proposal is
// still considered resolved.
func (k *Kernel) execute(p *colony.Proposal) {
	switch p.Action.Kind {
	case colony.ActionSpawn:
		s := p.Action.Spawn
		if s == nil {
			break
		}
		parent := ""
		if _, ok := k.state.FindAgent(p.Proposer); ok && p.Proposer != "" {
			parent = p.Proposer
		} else if n := len(k.state.Agents); n > 0 {
			parent = k.state.Agents[k.rng.Intn(n)].ID
		}
		if _, err := k.spawnLocked(s.Type, s.Role, s.Config, parent); err != nil {
			logging.SpawnWarn("proposal %s passed but spawn failed: %v", p.ID, err)
		}

	case colony.ActionPolicyChange:
		c := p.Action.Policy
		if c == nil {
			break
		}
		prev, _ := k.state.Policy.Value(c.Name)
		next, err := k.state.Policy.With(c.Name, c.Value, len(k.state.Agents))
		if err != nil {
			k.pushLog(colony.LogError, fmt.Sprintf("[ERROR] Policy change %s could not be applied: %v.", p.ID, err))
			logging.VoteError("policy change %s not applied: %v", p.ID, err)
			return
		}
		k.state.Policy = next
		k.pushLog(colony.LogSuccess, fmt.Sprintf("[POLICY] %s changed from %v to %v.", c.Name, prev, c.Value))
		logging.Vote("policy %s: %v -> %v", c.Name, prev, c.Value)
		if i := k.state.AgentIndex(p.Proposer); i >= 0 {
			k.record(i, colony.LogSuccess, fmt.Sprintf("Policy change enacted: %s", p.Action.Describe()))
		}
	}
}
