package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"collective/internal/colony"
	"collective/internal/logging"
	"collective/internal/store"
)

// Save writes the colony and its counters as one JSON blob under the
// configured key, replacing any previous blob. The outcome is logged either way.
func (k *Kernel) Save(ctx context.Context) error {
	k.mu.Lock()
	snap := k.snapshotLocked()
	k.mu.Unlock()

	timer := logging.StartTimer(logging.CategoryPersist, "Save")
	defer timer.Stop()

	data, err := json.Marshal(snap)
	if err == nil {
		err = k.store.Put(ctx, k.cfg.StateKey, data)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if err != nil {
		k.pushLog(colony.LogError, fmt.Sprintf("[ERROR] Failed to save state: %v", err))
		logging.PersistError("save failed: %v", err)
		k.publishLocked()
		return fmt.Errorf("save state: %w", err)
	}
	k.pushLog(colony.LogSuccess, fmt.Sprintf("[SAVE] State saved at tick %d (%d agents).", snap.Counters.Tick, len(snap.State.Agents)))
	logging.Persist("saved %d bytes under %s", len(data), k.cfg.StateKey)
	k.publishLocked()
	return nil
}

// Load replaces the colony with the saved blob. The kernel is always left
// stopped. A missing blob leaves the state untouched and returns
// ErrNoSavedState; an undecodable blob is deleted and returns ErrCorruptState.
func (k *Kernel) Load(ctx context.Context) error {
	k.Stop()

	timer := logging.StartTimer(logging.CategoryPersist, "Load")
	defer timer.Stop()

	data, err := k.store.Get(ctx, k.cfg.StateKey)
	if err != nil {
		k.mu.Lock()
		defer k.mu.Unlock()
		if errors.Is(err, store.ErrNotFound) {
			k.pushLog(colony.LogWarning, "[LOAD] No saved state found.")
			logging.PersistWarn("no blob under %s", k.cfg.StateKey)
			k.publishLocked()
			return ErrNoSavedState
		}
		k.pushLog(colony.LogError, fmt.Sprintf("[ERROR] Failed to load state: %v", err))
		logging.PersistError("load failed: %v", err)
		k.publishLocked()
		return fmt.Errorf("load state: %w", err)
	}

	var snap colony.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		delErr := k.store.Delete(ctx, k.cfg.StateKey)
		k.mu.Lock()
		defer k.mu.Unlock()
		k.pushLog(colony.LogError, "[ERROR] Saved state is corrupt and was discarded.")
		logging.PersistError("corrupt blob under %s discarded: %v", k.cfg.StateKey, err)
		if delErr != nil {
			logging.PersistError("failed to delete corrupt blob: %v", delErr)
		}
		k.publishLocked()
		return fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	k.mu.Lock()
	// A concurrent Init may have restarted the loop since the Stop above.
	done := k.stopLocked()

	st := snap.State
	st.Normalize()
	if st.Policy == (colony.Policy{}) {
		st.Policy = k.cfg.Policy
	}
	if st.Identity == "" {
		st.Identity = colony.InitialIdentity
	}
	st.IsRunning = false
	// Saved busy flags are stale; calls still outstanding here keep theirs.
	st.IsThinking = k.chatInFlight
	st.Foresight.Loading = k.foresightInFlight

	k.state = st
	k.counters = snap.Counters
	k.refreshDerived()
	logging.Persist("restored %d agents, %d pending proposals at tick %d (%d bytes from %s)",
		len(st.Agents), len(st.Proposals), snap.Counters.Tick, len(data), k.cfg.StateKey)
	k.publishLocked()
	k.mu.Unlock()

	if done != nil {
		<-done
	}
	return nil
}
