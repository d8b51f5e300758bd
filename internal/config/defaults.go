package config

// DefaultModel is the generation model used when none is configured.
// Groq's llama hosting is fast enough to keep a full analysis under a minute.
const DefaultModel = "llama-3.3-70b-versatile"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:        5000,
		DataDir:     "data",
		FrontendURL: "http://localhost:5173",
		Provider:    ProviderGroq,
		Model:       DefaultModel,
		Queue: QueueConfig{
			Backend:       QueueMemory,
			Brokers:       "localhost:9092",
			Topic:         "repo.analysis.request",
			ConsumerGroup: "contrimap-worker",
			MaxAttempts:   3,
			BackoffMS:     5000,
		},
	}
}
