// Package kernel owns the colony state and advances it. Every mutation goes
// through one lock; consumers see the colony only through deep-copied
// snapshots delivered by Snapshot or Subscribe.
package kernel

import (
	"context"
	"math/rand"
	"slices"
	"sync"
	"time"

	"collective/internal/colony"
	"collective/internal/config"
	"collective/internal/logging"
	"collective/internal/metrics"
	"collective/internal/store"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Behaviors holds the per-tick chances of autonomous agent behavior.
// A zero chance disables the behavior and consumes no random draws.
type Behaviors struct {
	Intel   float64 // Analyst emits a threat report
	Policy  float64 // Ethicist proposes a policy change
	Spawn   float64 // Strategist proposes a spawn
	Message float64 // agent messages a peer
	Drift   float64 // one agent's PAS drifts
	Avatars bool    // request avatars for spawned agents
}

// Config tunes the kernel.
type Config struct {
	TickInterval    time.Duration
	VoteProbability float64
	HistoryCap      int
	LogCap          int
	FeedCap         int
	StateKey        string
	Policy          colony.Policy
	Behaviors       Behaviors
}

// DefaultConfig returns the settings the collective ships with.
func DefaultConfig() Config {
	return Config{
		TickInterval:    2 * time.Second,
		VoteProbability: 0.5,
		HistoryCap:      colony.DefaultHistoryCap,
		LogCap:          100,
		FeedCap:         50,
		StateKey:        "alice-kernel-state",
		Policy:          colony.DefaultPolicy(),
		Behaviors: Behaviors{
			Intel:   0.15,
			Policy:  0.05,
			Spawn:   0.03,
			Message: 0.1,
			Drift:   0.1,
			Avatars: true,
		},
	}
}

// FromConfig maps the kernel section of the application config.
func FromConfig(c *config.Config) Config {
	kc := c.Kernel
	cfg := Config{
		TickInterval:    c.GetTickInterval(),
		VoteProbability: kc.VoteProbability,
		HistoryCap:      kc.HistoryCap,
		LogCap:          kc.LogCap,
		FeedCap:         kc.FeedCap,
		StateKey:        c.Storage.StateKey,
		Policy: colony.Policy{
			MinPAS:            kc.Policy.MinPAS,
			MaxAgents:         kc.Policy.MaxAgents,
			ApprovalThreshold: kc.Policy.ApprovalThreshold,
		},
	}
	if kc.Behaviors.Enabled {
		cfg.Behaviors = Behaviors{
			Intel:   kc.Behaviors.Intel,
			Policy:  kc.Behaviors.Policy,
			Spawn:   kc.Behaviors.Spawn,
			Message: kc.Behaviors.Message,
			Drift:   kc.Behaviors.Drift,
		}
	}
	cfg.Behaviors.Avatars = kc.Behaviors.Avatars
	return cfg
}

// NewRandom returns a seeded source. A zero seed uses the clock.
func NewRandom(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Option customizes a Kernel.
type Option func(*Kernel)

// WithLanguageModel sets the chat collaborator.
func WithLanguageModel(m LanguageModel) Option {
	return func(k *Kernel) { k.llm = m }
}

// WithImageGenerator sets the avatar collaborator.
func WithImageGenerator(g ImageGenerator) Option {
	return func(k *Kernel) { k.images = g }
}

// WithVideoGenerator sets the foresight collaborator.
func WithVideoGenerator(g VideoGenerator) Option {
	return func(k *Kernel) { k.video = g }
}

// WithStore sets where Save and Load keep the colony blob.
func WithStore(s store.BlobStore) Option {
	return func(k *Kernel) { k.store = s }
}

// WithRandom injects the random source. Tests pass a fixed seed.
func WithRandom(r RandomSource) Option {
	return func(k *Kernel) { k.rng = r }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(k *Kernel) { k.metrics = m }
}

// =============================================================================
// KERNEL
// =============================================================================

// Kernel is the colony controller. It is safe for concurrent use.
type Kernel struct {
	cfg Config

	mu       sync.Mutex
	state    colony.State
	counters colony.Counters
	rng      RandomSource
	closed   bool

	// Outstanding collaborator calls. Not persisted; Load restores the
	// matching state flags from these.
	chatInFlight      bool
	foresightInFlight bool

	// Loop handles; nil while stopped.
	loopCancel context.CancelFunc
	loopDone   chan struct{}

	// Detached follow-ups (avatars).
	bg       sync.WaitGroup
	bgCtx    context.Context
	bgCancel context.CancelFunc

	llm     LanguageModel
	images  ImageGenerator
	video   VideoGenerator
	store   store.BlobStore
	metrics *metrics.Metrics

	subMu   sync.Mutex
	subs    map[int]chan colony.Snapshot
	nextSub int
}

// New creates a stopped kernel with an empty roster.
func New(cfg Config, opts ...Option) *Kernel {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = def.HistoryCap
	}
	if cfg.LogCap <= 0 {
		cfg.LogCap = def.LogCap
	}
	if cfg.FeedCap <= 0 {
		cfg.FeedCap = def.FeedCap
	}
	if cfg.StateKey == "" {
		cfg.StateKey = def.StateKey
	}
	if cfg.Policy == (colony.Policy{}) {
		cfg.Policy = def.Policy
	}

	k := &Kernel{
		cfg:   cfg,
		state: colony.NewState(cfg.Policy),
		subs:  make(map[int]chan colony.Snapshot),
	}
	k.bgCtx, k.bgCancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(k)
	}
	if k.rng == nil {
		k.rng = NewRandom(0)
	}
	if k.store == nil {
		k.store = store.NewMemoryStore()
	}

	k.pushLog(colony.LogInfo, "[INIT] Kernel standing by.")
	k.refreshDerived()
	return k
}

// Config returns the settings the kernel was built with.
func (k *Kernel) Config() Config {
	return k.cfg
}

// Init starts the tick loop, seeding a Genesis agent if the roster is empty.
// It is a no-op while running.
func (k *Kernel) Init() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.state.IsRunning || k.closed {
		return
	}
	k.state.IsRunning = true

	if len(k.state.Agents) == 0 {
		genesis := k.newAgent(colony.AgentStrategist, "Genesis", 0.9, map[string]any{}, "")
		k.state.Agents = append(k.state.Agents, genesis)
		k.pushLog(colony.LogSpawn, "[SPAWNED] Genesis agent "+genesis.ID+" created.")
		logging.Spawn("genesis agent %s created", genesis.ID)
		k.decorateAvatar(genesis)
		k.refreshDerived()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	k.loopCancel, k.loopDone = cancel, done
	go k.run(ctx, done, k.cfg.TickInterval)

	k.pushLog(colony.LogInfo, "[INIT] Kernel activated. Simulation running.")
	logging.Kernel("kernel activated (interval=%v, agents=%d)", k.cfg.TickInterval, len(k.state.Agents))
	k.publishLocked()
}

// Stop halts the tick loop and waits for it to exit. In-flight chat and
// foresight calls are not cancelled. It is a no-op while stopped.
func (k *Kernel) Stop() {
	k.mu.Lock()
	if !k.state.IsRunning {
		k.mu.Unlock()
		return
	}
	done := k.stopLocked()
	k.pushLog(colony.LogInfo, "[STOP] Kernel deactivated. Simulation paused.")
	logging.Kernel("kernel deactivated at tick %d", k.counters.Tick)
	k.publishLocked()
	k.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Step runs exactly one tick. It is only accepted while stopped.
func (k *Kernel) Step() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.state.IsRunning {
		return ErrRunning
	}
	k.tick()
	k.pushLog(colony.LogInfo, "[STEP] Manual simulation step executed.")
	k.publishLocked()
	return nil
}

// IsRunning reports whether the tick loop is active.
func (k *Kernel) IsRunning() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state.IsRunning
}

// Shutdown stops the loop, cancels avatar follow-ups, waits for every
// background goroutine and closes all subscriptions.
func (k *Kernel) Shutdown(ctx context.Context) error {
	k.mu.Lock()
	k.closed = true
	wasRunning := k.state.IsRunning
	done := k.stopLocked()
	if wasRunning {
		k.pushLog(colony.LogInfo, "[STOP] Kernel deactivated. Simulation paused.")
		k.publishLocked()
	}
	k.mu.Unlock()
	k.bgCancel()

	finished := make(chan struct{})
	go func() {
		if done != nil {
			<-done
		}
		k.bg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		return ctx.Err()
	}

	k.subMu.Lock()
	for id, ch := range k.subs {
		close(ch)
		delete(k.subs, id)
	}
	k.subMu.Unlock()

	logging.Kernel("kernel shut down at tick %d", k.counters.Tick)
	return nil
}

// stopLocked clears the running flag and cancels the loop. The returned
// channel closes once the loop goroutine has exited.
func (k *Kernel) stopLocked() chan struct{} {
	k.state.IsRunning = false
	if k.loopCancel == nil {
		return nil
	}
	k.loopCancel()
	done := k.loopDone
	k.loopCancel, k.loopDone = nil, nil
	return done
}

// run is the tick loop goroutine.
func (k *Kernel) run(ctx context.Context, done chan struct{}, interval time.Duration) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.mu.Lock()
			if ctx.Err() == nil && k.state.IsRunning {
				k.tick()
				k.publishLocked()
			}
			k.mu.Unlock()
		}
	}
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// Snapshot returns a deep copy of the current colony.
func (k *Kernel) Snapshot() colony.Snapshot {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.snapshotLocked()
}

func (k *Kernel) snapshotLocked() colony.Snapshot {
	return colony.Snapshot{State: k.state.Clone(), Counters: k.counters}
}

// Subscribe returns a channel that receives a snapshot after every mutation,
// primed with the current one. The buffer holds one snapshot; a slow reader
// only sees the latest. Snapshots are shared between subscribers and must not
// be modified. cancel closes the channel.
func (k *Kernel) Subscribe() (<-chan colony.Snapshot, func()) {
	ch := make(chan colony.Snapshot, 1)

	k.mu.Lock()
	k.subMu.Lock()
	if k.closed {
		k.subMu.Unlock()
		k.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	ch <- k.snapshotLocked()
	id := k.nextSub
	k.nextSub++
	k.subs[id] = ch
	k.subMu.Unlock()
	k.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			k.subMu.Lock()
			defer k.subMu.Unlock()
			if c, ok := k.subs[id]; ok {
				delete(k.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// publishLocked delivers the current snapshot to every subscriber without
// blocking. Must be called with k.mu held.
func (k *Kernel) publishLocked() {
	k.subMu.Lock()
	defer k.subMu.Unlock()
	if len(k.subs) == 0 {
		return
	}

	snap := k.snapshotLocked()
	for _, ch := range k.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Full: drop the stale snapshot and replace it.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// =============================================================================
// STATE HELPERS (k.mu held)
// =============================================================================

// pushLog prepends an entry to the colony log, keeping at most LogCap.
func (k *Kernel) pushLog(typ colony.LogType, msg string) {
	entry := colony.LogEntry{ID: k.counters.NextLogID, Type: typ, Message: msg}
	k.counters.NextLogID++
	k.state.Logs = slices.Insert(k.state.Logs, 0, entry)
	if len(k.state.Logs) > k.cfg.LogCap {
		k.state.Logs = k.state.Logs[:k.cfg.LogCap]
	}
	logging.KernelDebug("%s", msg)
}

// pushMessage prepends a chat message. The chat log is not capped.
func (k *Kernel) pushMessage(m colony.ChatMessage) {
	m.ID = k.counters.NextMessageID
	k.counters.NextMessageID++
	k.state.Messages = slices.Insert(k.state.Messages, 0, m)
}

func (k *Kernel) pushThreat(t colony.Threat) {
	k.state.Threats = slices.Insert(k.state.Threats, 0, t)
	if len(k.state.Threats) > k.cfg.FeedCap {
		k.state.Threats = k.state.Threats[:k.cfg.FeedCap]
	}
}

func (k *Kernel) pushAgentMessage(m colony.AgentMessage) {
	k.state.AgentMessages = slices.Insert(k.state.AgentMessages, 0, m)
	if len(k.state.AgentMessages) > k.cfg.FeedCap {
		k.state.AgentMessages = k.state.AgentMessages[:k.cfg.FeedCap]
	}
}

// record appends to an agent's history ring.
func (k *Kernel) record(i int, typ colony.LogType, msg string) {
	k.state.Agents[i].Record(colony.HistoryEntry{Tick: k.counters.Tick, Type: typ, Message: msg}, k.cfg.HistoryCap)
}

// refreshDerived recomputes the graph and average PAS.
func (k *Kernel) refreshDerived() {
	k.state.Graph = colony.BuildGraph(k.state.Agents)
	k.state.AveragePAS = colony.AveragePAS(k.state.Agents)
	k.metrics.SetColony(len(k.state.Agents), len(k.state.Proposals), k.state.AveragePAS)
}

// chance draws against p. A non-positive p never fires and draws nothing.
func (k *Kernel) chance(p float64) bool {
	return p > 0 && k.rng.Float64() < p
}
