package config

// StorageConfig configures where the colony blob is persisted.
type StorageConfig struct {
	Driver   string `yaml:"driver"` // sqlite, memory
	Path     string `yaml:"path"`
	StateKey string `yaml:"state_key"`
}
