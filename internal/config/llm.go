package config

// LLMConfig configures the generative model collaborators.
type LLMConfig struct {
	Provider   string `yaml:"provider"` // gemini
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`       // text, intent, grounded answers
	ImageModel string `yaml:"image_model"` // agent avatars
	VideoModel string `yaml:"video_model"` // foresight
	Timeout    string `yaml:"timeout"`

	// VideoPollInterval is how long to wait between polls of a pending
	// video generation operation.
	VideoPollInterval string `yaml:"video_poll_interval"`
}
