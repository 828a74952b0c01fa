package kernel

import (
	"fmt"
	"math"

	"collective/internal/colony"
	"collective/internal/logging"
)

var threatCatalogue = []string{
	"Anomalous traffic pattern detected on an external data feed.",
	"Unverified claim propagating through public information channels.",
	"Resource contention detected between agent task queues.",
	"Drift in consensus alignment across recent votes.",
	"Unexpected latency spike in collaborator responses.",
	"Adversarial prompt pattern observed in inbound messages.",
	"Policy threshold approaching an unstable configuration.",
	"Knowledge graph inconsistency between two agent reports.",
}

var commsTemplates = []string{
	"Requesting your assessment of the current proposal queue.",
	"Sharing updated intel; please cross-check against your models.",
	"Proposing we coordinate on the next policy review.",
	"Your last analysis raised a useful point. Expanding on it now.",
	"Flagging a possible inconsistency in the threat feed.",
	"Synchronizing priorities for the next cycle.",
}

var archetypeRoles = map[colony.AgentType][]string{
	colony.AgentResearcher: {"Scout", "Archivist", "Surveyor"},
	colony.AgentEngineer:   {"Builder", "Optimizer", "Innovator"},
	colony.AgentAnalyst:    {"Guardian", "Sentinel", "Auditor"},
	colony.AgentStrategist: {"Planner", "Navigator", "Visionary"},
	colony.AgentEthicist:   {"Mediator", "Arbiter", "Steward"},
}

// runBehaviors gives every agent its independent draws, then applies one
// colony-wide PAS drift. Must be called with k.mu held.
func (k *Kernel) runBehaviors() {
	b := k.cfg.Behaviors
	n := len(k.state.Agents)

	for i := 0; i < n; i++ {
		switch k.state.Agents[i].Type {
		case colony.AgentAnalyst:
			if k.chance(b.Intel) {
				k.emitIntel(i)
			}
		case colony.AgentEthicist:
			if k.chance(b.Policy) {
				k.proposePolicyNudge(i)
			}
		case colony.AgentStrategist:
			if k.chance(b.Spawn) {
				k.proposeRecruit(i)
			}
		}

		if n >= 2 && k.chance(b.Message) {
			k.messagePeer(i, n)
		}
	}

	if n > 0 && k.chance(b.Drift) {
		i := k.rng.Intn(n)
		a := &k.state.Agents[i]
		a.PAS = clamp(a.PAS+(k.rng.Float64()-0.4)*0.1, 0, 1)
		k.pushLog(colony.LogInfo, fmt.Sprintf("[EVOLVED] Agent %s PAS score is now %.2f.", a.ID, a.PAS))
		k.record(i, colony.LogInfo, fmt.Sprintf("PAS drifted to %.2f", a.PAS))
		logging.BehaviorDebug("agent %s drifted to pas=%.3f", a.ID, a.PAS)
	}
}

func (k *Kernel) emitIntel(i int) {
	a := &k.state.Agents[i]
	t := colony.Threat{
		ID:          k.newID("threat"),
		Level:       colony.ThreatLevels[k.rng.Intn(len(colony.ThreatLevels))],
		Description: threatCatalogue[k.rng.Intn(len(threatCatalogue))],
		Source:      a.ID,
		Tick:        k.counters.Tick,
	}
	k.pushThreat(t)
	a.Metrics.TasksCompleted++
	k.record(i, colony.LogIntel, fmt.Sprintf("Reported %s threat: %s", t.Level, t.Description))
	k.pushLog(colony.LogIntel, fmt.Sprintf("[INTEL] Agent %s reported a %s threat: %s", a.ID, t.Level, t.Description))
	logging.BehaviorDebug("agent %s emitted %s threat %s", a.ID, t.Level, t.ID)
}

// proposePolicyNudge has an Ethicist propose a small change to one policy,
// unless a change to that policy is already pending.
func (k *Kernel) proposePolicyNudge(i int) {
	a := &k.state.Agents[i]
	name := colony.PolicyNames[k.rng.Intn(len(colony.PolicyNames))]
	if k.state.PendingPolicyChange(name) {
		return
	}

	value, ok := k.nudge(name)
	if !ok {
		return
	}
	p, err := k.proposePolicyLocked(a.ID, string(name), value)
	if err != nil {
		logging.BehaviorDebug("agent %s policy nudge skipped: %v", a.ID, err)
		return
	}
	a.Metrics.DecisionsMade++
	k.record(i, colony.LogProposal, fmt.Sprintf("Proposed %s (%s)", p.Action.Describe(), p.ID))
}

// nudge picks a nearby value for a policy. ok is false when no change results.
func (k *Kernel) nudge(name colony.PolicyName) (float64, bool) {
	pol := k.state.Policy
	switch name {
	case colony.PolicyMinPAS:
		v := round2(clamp(pol.MinPAS+(k.rng.Float64()-0.5)*0.1, 0, 1))
		return v, v != pol.MinPAS
	case colony.PolicyApprovalThreshold:
		v := round2(clamp(pol.ApprovalThreshold+(k.rng.Float64()-0.5)*0.1, 0.05, 1))
		return v, v != pol.ApprovalThreshold
	case colony.PolicyMaxAgents:
		v := pol.MaxAgents + 1
		if k.rng.Float64() >= 0.7 {
			v = max(pol.MaxAgents-1, len(k.state.Agents), 1)
		}
		return float64(v), v != pol.MaxAgents
	}
	return 0, false
}

// proposeRecruit has a Strategist propose spawning a random archetype.
// At capacity it stays silent rather than flooding the log.
func (k *Kernel) proposeRecruit(i int) {
	a := &k.state.Agents[i]
	t := colony.AgentTypes[k.rng.Intn(len(colony.AgentTypes))]
	roles := archetypeRoles[t]
	role := roles[k.rng.Intn(len(roles))]

	p, err := k.proposeSpawnLocked(a.ID, t, role, "{}")
	if err != nil {
		logging.BehaviorDebug("agent %s recruit skipped: %v", a.ID, err)
		return
	}
	a.Metrics.DecisionsMade++
	k.record(i, colony.LogProposal, fmt.Sprintf("Proposed recruiting a %s %s (%s)", role, t, p.ID))
}

// messagePeer sends a comms message from agent i to a random other agent.
func (k *Kernel) messagePeer(i, n int) {
	j := k.rng.Intn(n - 1)
	if j >= i {
		j++
	}
	from, to := &k.state.Agents[i], &k.state.Agents[j]
	m := colony.AgentMessage{
		ID:      k.newID("msg"),
		From:    from.ID,
		To:      to.ID,
		Content: commsTemplates[k.rng.Intn(len(commsTemplates))],
		Tick:    k.counters.Tick,
	}
	k.pushAgentMessage(m)
	k.record(i, colony.LogInfo, "Sent message to "+to.ID)
	k.record(j, colony.LogInfo, "Received message from "+from.ID)
	logging.BehaviorDebug("agent %s -> %s: %s", from.ID, to.ID, m.Content)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
