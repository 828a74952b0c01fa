package kernel

import (
	"encoding/json"
	"fmt"

	"collective/internal/colony"
	"collective/internal/logging"
)

// Spawn creates an agent directly, outside the voting process. configJSON
// must decode to a JSON object. parent may be empty.
func (k *Kernel) Spawn(t colony.AgentType, role, configJSON, parent string) (colony.Agent, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, err := colony.ParseAgentType(string(t)); err != nil {
		k.pushLog(colony.LogError, fmt.Sprintf("[ERROR] Unknown agent type %q.", t))
		k.publishLocked()
		return colony.Agent{}, err
	}

	a, err := k.spawnLocked(t, role, configJSON, parent)
	k.publishLocked()
	return a, err
}

// spawnLocked validates and appends a new agent. Every failure leaves one
// error entry in the colony log and no state change.
func (k *Kernel) spawnLocked(t colony.AgentType, role, configJSON, parent string) (colony.Agent, error) {
	var cfg map[string]any
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		k.pushLog(colony.LogError, fmt.Sprintf("[ERROR] Invalid config JSON for role %s.", role))
		logging.SpawnError("invalid config for role %q: %v", role, err)
		return colony.Agent{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg == nil {
		cfg = map[string]any{}
	}

	if len(k.state.Agents) >= k.state.Policy.MaxAgents {
		k.pushLog(colony.LogError, fmt.Sprintf("[ERROR] Max agent limit reached. Cannot spawn '%s'.", role))
		logging.SpawnError("spawn of %q refused: %d/%d agents", role, len(k.state.Agents), k.state.Policy.MaxAgents)
		return colony.Agent{}, fmt.Errorf("%w: %d/%d agents", ErrCapacityReached, len(k.state.Agents), k.state.Policy.MaxAgents)
	}

	a := k.newAgent(t, role, k.rng.Float64()*0.5+0.3, cfg, parent)
	k.state.Agents = append(k.state.Agents, a)
	k.pushLog(colony.LogSpawn, fmt.Sprintf("[SPAWNED] New %s agent '%s' (%s) created.", t, role, a.ID))
	logging.Spawn("agent %s spawned (type=%s role=%q pas=%.2f parent=%q)", a.ID, t, role, a.PAS, parent)
	k.refreshDerived()
	k.decorateAvatar(a)
	return a.Clone(), nil
}

func (k *Kernel) newAgent(t colony.AgentType, role string, pas float64, cfg map[string]any, parent string) colony.Agent {
	return colony.Agent{
		ID:      k.newID("agent"),
		Role:    role,
		Type:    t,
		PAS:     pas,
		Parent:  parent,
		Config:  cfg,
		History: []colony.HistoryEntry{},
	}
}

// decorateAvatar starts a detached request for an avatar image. On success
// the agent record is patched and a snapshot republished; on failure nothing
// changes. Must be called with k.mu held.
func (k *Kernel) decorateAvatar(a colony.Agent) {
	if k.images == nil || !k.cfg.Behaviors.Avatars || k.closed {
		return
	}

	gen := k.images
	ctx := k.bgCtx
	prompt := fmt.Sprintf("A futuristic digital avatar for an AI agent. Role: %s. Type: %s. Abstract, glowing neural network aesthetic, dark background.", a.Role, a.Type)

	k.bg.Add(1)
	go func() {
		defer k.bg.Done()

		uri, err := gen.GenerateImage(ctx, prompt)
		if err != nil {
			k.metrics.IncExternalCall("image", "error")
			logging.SpawnWarn("avatar for %s failed: %v", a.ID, err)
			return
		}
		k.metrics.IncExternalCall("image", "ok")
		if uri == "" {
			return
		}

		k.mu.Lock()
		defer k.mu.Unlock()
		i := k.state.AgentIndex(a.ID)
		if i < 0 {
			// State was replaced by a load.
			return
		}
		k.state.Agents[i].Avatar = uri
		logging.Spawn("avatar attached to %s", a.ID)
		k.publishLocked()
	}()
}
