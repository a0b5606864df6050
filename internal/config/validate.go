package config

import (
	"errors"
	"fmt"
)

/*
Configuration validation covering everything that must be present before a
pipeline run is allowed to start:
- Database DSN
- Ollama endpoint
- Model fallback chains (every configured chain must be non-empty)
- Worker sizing

Redis is validated separately: only the queue-backed commands need it,
in-process CLI runs never touch the queue.
*/

func (c *Config) Validate() error {
	if c.Database.Primary.DSN == "" {
		return errors.New("database.primary.DSN is required")
	}

	if c.Ollama.BaseURL == "" {
		return errors.New("ollama.base_url is required")
	}
	if c.Ollama.TimeoutSeconds <= 0 {
		return errors.New("ollama.timeout_seconds must be a positive integer")
	}

	if len(c.Models.Chains) == 0 {
		return errors.New("models.chains must define at least one task chain")
	}
	for task, chain := range c.Models.Chains {
		if task == "" {
			return errors.New("models.chains contains an empty task type")
		}
		if len(chain) == 0 {
			return fmt.Errorf("models.chains for task '%s' must list at least one model", task)
		}
		for _, model := range chain {
			if model == "" {
				return fmt.Errorf("models.chains for task '%s' contains an empty model name", task)
			}
		}
	}

	if c.Workers.Concurrency <= 0 {
		return errors.New("workers.concurrency must be a positive integer")
	}
	if c.Workers.QueueSize <= 0 {
		return errors.New("workers.queue_size must be a positive integer")
	}

	if c.Pipeline.ProgressInterval <= 0 {
		return errors.New("pipeline.progress_interval must be a positive integer")
	}

	if c.Taxonomy.ConfidenceThreshold < 0 || c.Taxonomy.ConfidenceThreshold > 1 {
		return errors.New("taxonomy.confidence_threshold must be within [0,1]")
	}

	return nil
}

// ValidateQueue checks the settings the queue-backed commands need on top
// of Validate.
func (c *Config) ValidateQueue() error {
	if c.Redis.Address == "" {
		return errors.New("redis.address is required when the run queue is used")
	}
	return nil
}
