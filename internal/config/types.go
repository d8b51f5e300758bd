package config

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderGroq   ProviderType = "groq"
	ProviderOpenAI ProviderType = "openai"
)

// QueueBackend identifies the job queue implementation.
type QueueBackend string

const (
	QueueMemory QueueBackend = "memory"
	QueueKafka  QueueBackend = "kafka"
)

// Config is the top-level contrimap configuration, corresponding to .contrimap.yml.
type Config struct {
	Port        int          `yaml:"port" koanf:"port"`
	DataDir     string       `yaml:"data_dir" koanf:"data_dir"`
	FrontendURL string       `yaml:"frontend_url" koanf:"frontend_url"`
	GitHubToken string       `yaml:"github_token" koanf:"github_token"`
	Provider    ProviderType `yaml:"provider" koanf:"provider"`
	Model       string       `yaml:"model" koanf:"model"`
	Queue       QueueConfig  `yaml:"queue" koanf:"queue"`
}

// QueueConfig holds job queue settings. The Kafka fields are only read
// when Backend is "kafka".
type QueueConfig struct {
	Backend       QueueBackend `yaml:"backend" koanf:"backend"`
	Brokers       string       `yaml:"brokers" koanf:"brokers"`
	Topic         string       `yaml:"topic" koanf:"topic"`
	ConsumerGroup string       `yaml:"consumer_group" koanf:"consumer_group"`
	MaxAttempts   int          `yaml:"max_attempts" koanf:"max_attempts"`
	BackoffMS     int          `yaml:"backoff_ms" koanf:"backoff_ms"`
}
