package config

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Addr       string `yaml:"addr"`
	EnableCORS bool   `yaml:"enable_cors"`
	Debug      bool   `yaml:"debug"` // gin debug mode
}
