package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type RabbitMQConfig struct {
	URL            string `yaml:"url"`
	ConnectRetries int    `yaml:"connectRetries"`
	BackoffMs      int    `yaml:"backoffMs"`
}

// StorageConfig points at the shared filesystem both the API and the
// workers can see. Uploads land under <root>/upload/pdf and processed
// output under <root>/processed.
type StorageConfig struct {
	Root string `yaml:"root"`
}

type OllamaConfig struct {
	BaseURL   string `yaml:"baseURL"`
	TimeoutMs int    `yaml:"timeoutMs"`
}

// JobsConfig controls how long status/progress keys for each job kind
// live in redis before expiring back to "unknown".
type JobsConfig struct {
	FileTTLSeconds  int `yaml:"fileTTLSeconds"`
	ModelTTLSeconds int `yaml:"modelTTLSeconds"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Storage  StorageConfig  `yaml:"storage"`
	Ollama   OllamaConfig   `yaml:"ollama"`
	Jobs     JobsConfig     `yaml:"jobs"`
}

func Load(path string) *Config {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	return &cfg
}

// FileTTL returns the configured TTL for file-processing status keys,
// falling back to one hour.
func (c *Config) FileTTL() int {
	if c.Jobs.FileTTLSeconds > 0 {
		return c.Jobs.FileTTLSeconds
	}
	return 3600
}

// ModelTTL returns the configured TTL for model-download status keys,
// falling back to two hours.
func (c *Config) ModelTTL() int {
	if c.Jobs.ModelTTLSeconds > 0 {
		return c.Jobs.ModelTTLSeconds
	}
	return 7200
}
