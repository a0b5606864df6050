package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// ModelSettings holds per-model generation knobs.
type ModelSettings struct {
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type Config struct {
	Database struct {
		Primary struct {
			DSN string
		}
	}

	Redis struct {
		Address  string
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	}

	// Ollama describes the local inference host. BaseURL points at the
	// OpenAI-compatible endpoint (e.g. http://localhost:11434/v1).
	Ollama struct {
		BaseURL        string `mapstructure:"base_url"`
		APIKey         string `mapstructure:"api_key"` // ignored by Ollama but the client wants one
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	} `mapstructure:"ollama"`

	// Models maps each task type to its priority-ordered fallback chain, plus
	// per-model generation settings.
	Models struct {
		Chains   map[string][]string      `mapstructure:"chains"`
		Settings map[string]ModelSettings `mapstructure:"settings"`
	} `mapstructure:"models"`

	Workers struct {
		Concurrency int `mapstructure:"concurrency"`
		QueueSize   int `mapstructure:"queue_size"`
	} `mapstructure:"workers"`

	Pipeline struct {
		PromptDir         string `mapstructure:"prompt_dir"`
		ProgressInterval  int    `mapstructure:"progress_interval"` // completions between snapshots
		RunHistoryLimit   int    `mapstructure:"run_history_limit"` // recent runs carried on snapshots
		TitleMaxLength    int    `mapstructure:"title_max_length"`
		MetaDescMaxLength int    `mapstructure:"meta_desc_max_length"`
	} `mapstructure:"pipeline"`

	Taxonomy struct {
		URL                 string  `mapstructure:"url"`
		CachePath           string  `mapstructure:"cache_path"`
		ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	} `mapstructure:"taxonomy"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".") // Look for config.yaml in the current directory

	viper.AutomaticEnv()
	// Allow pointing at a remote inference host without editing config.yaml.
	viper.BindEnv("ollama.base_url", "OLLAMA_BASE_URL")
	viper.BindEnv("database.primary.dsn", "OPTIMUS_DATABASE_DSN")
	viper.BindEnv("redis.address", "OPTIMUS_REDIS_ADDRESS")

	// Defaults keep a bare config usable against a local stack.
	viper.SetDefault("ollama.base_url", "http://localhost:11434/v1")
	viper.SetDefault("ollama.timeout_seconds", 120)
	viper.SetDefault("workers.concurrency", 4)
	viper.SetDefault("workers.queue_size", 100)
	viper.SetDefault("pipeline.progress_interval", 5)
	viper.SetDefault("pipeline.run_history_limit", 10)
	viper.SetDefault("pipeline.title_max_length", 70)
	viper.SetDefault("pipeline.meta_desc_max_length", 160)
	viper.SetDefault("taxonomy.confidence_threshold", 0.3)

	if err := viper.ReadInConfig(); err != nil {
		// It's okay if the config file doesn't exist, Viper might rely solely on env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
