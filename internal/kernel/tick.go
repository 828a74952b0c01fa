package kernel

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"collective/internal/logging"
)

// tick advances the colony by one step. Must be called with k.mu held;
// the caller publishes.
func (k *Kernel) tick() {
	start := time.Now()
	k.counters.Tick++

	// 1. Cosmetic identity
	k.state.Identity = "A.L.I.C.E.-Σ-Ω-" + k.identityHash()

	// 2. Age agents
	for i := range k.state.Agents {
		k.state.Agents[i].Age++
	}

	// 3. Resolve proposals
	k.resolveProposals()

	// 4. Autonomous behavior
	k.runBehaviors()

	// 5. Derived views
	k.refreshDerived()

	elapsed := time.Since(start)
	k.metrics.ObserveTick(elapsed)
	logging.KernelDebug("tick %d: %d agents, %d pending proposals (%v)",
		k.counters.Tick, len(k.state.Agents), len(k.state.Proposals), elapsed)
}

// identityHash returns 8 hex characters of a hash over random bytes.
func (k *Kernel) identityHash() string {
	buf := make([]byte, 16)
	_, _ = k.rng.Read(buf)
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:4])
}

// newID returns prefix-xxxxxxxx drawn from the injected random source so
// seeded runs reproduce ids.
func (k *Kernel) newID(prefix string) string {
	id, err := uuid.NewRandomFromReader(k.rng)
	if err != nil {
		id = uuid.New()
	}
	return prefix + "-" + id.String()[:8]
}
