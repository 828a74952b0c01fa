package config

// KernelConfig configures the simulation kernel.
type KernelConfig struct {
	TickInterval string `yaml:"tick_interval"` // e.g. "2s"
	// Seed fixes the random source. Zero seeds from the clock.
	Seed            int64   `yaml:"seed"`
	VoteProbability float64 `yaml:"vote_probability"`
	HistoryCap      int     `yaml:"history_cap"` // per-agent history ring
	LogCap          int     `yaml:"log_cap"`
	FeedCap         int     `yaml:"feed_cap"` // threats and comms log

	Behaviors BehaviorConfig `yaml:"behaviors"`
	Policy    PolicyConfig   `yaml:"policy"`
}

// BehaviorConfig holds the per-tick chances of autonomous agent behavior.
type BehaviorConfig struct {
	Enabled bool `yaml:"enabled"`
	Avatars bool `yaml:"avatars"` // request an avatar image for spawned agents

	Intel   float64 `yaml:"intel"`   // Analyst emits a threat report
	Policy  float64 `yaml:"policy"`  // Ethicist proposes a policy change
	Spawn   float64 `yaml:"spawn"`   // Strategist proposes a spawn
	Message float64 `yaml:"message"` // agent messages a peer
	Drift   float64 `yaml:"drift"`   // one agent's PAS drifts
}

// PolicyConfig is the policy a fresh colony starts with.
type PolicyConfig struct {
	MinPAS            float64 `yaml:"min_pas"`
	MaxAgents         int     `yaml:"max_agents"`
	ApprovalThreshold float64 `yaml:"approval_threshold"`
}
