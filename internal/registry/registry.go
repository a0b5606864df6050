package registry

import (
	"fmt"

	"optimus/internal/config"
	"optimus/internal/inference"
	"optimus/internal/models"
)

// Registry is the static description of which models may serve which task,
// in fallback order. It is loaded once at startup and never mutated.
type Registry struct {
	chains   map[models.TaskType][]string
	settings map[string]config.ModelSettings
}

// NewFromConfig parses the configured chains, rejecting unknown task types
// and empty chains. A broken registry is a configuration error, caught
// before any run starts.
func NewFromConfig(cfg *config.Config) (*Registry, error) {
	if len(cfg.Models.Chains) == 0 {
		return nil, fmt.Errorf("no model chains configured")
	}

	chains := make(map[models.TaskType][]string, len(cfg.Models.Chains))
	for rawTask, chain := range cfg.Models.Chains {
		task, err := models.ParseTaskType(rawTask)
		if err != nil {
			return nil, fmt.Errorf("invalid task type in models.chains: %w", err)
		}
		if len(chain) == 0 {
			return nil, fmt.Errorf("fallback chain for task %s is empty", task)
		}
		chains[task] = append([]string(nil), chain...)
	}

	settings := make(map[string]config.ModelSettings, len(cfg.Models.Settings))
	for model, s := range cfg.Models.Settings {
		settings[model] = s
	}

	return &Registry{chains: chains, settings: settings}, nil
}

// New builds a registry directly from chains; used by tests.
func New(chains map[models.TaskType][]string) *Registry {
	copied := make(map[models.TaskType][]string, len(chains))
	for task, chain := range chains {
		copied[task] = append([]string(nil), chain...)
	}
	return &Registry{chains: copied, settings: map[string]config.ModelSettings{}}
}

// ChainFor returns a copy of the priority-ordered fallback chain for a task.
// An absent or empty chain is a configuration error.
func (r *Registry) ChainFor(task models.TaskType) ([]string, error) {
	chain, ok := r.chains[task]
	if !ok || len(chain) == 0 {
		return nil, fmt.Errorf("no fallback chain configured for task %s", task)
	}
	return append([]string(nil), chain...), nil
}

// OrderedChain returns the chain for a task reordered so installed models
// come first, preserving chain priority within each group. When nothing is
// installed the original chain order is kept so the final entry still gets a
// last-resort attempt — the availability cache may simply be stale.
func (r *Registry) OrderedChain(task models.TaskType, avail *inference.Availability) ([]string, error) {
	chain, err := r.ChainFor(task)
	if err != nil {
		return nil, err
	}
	if avail == nil {
		return chain, nil
	}

	installed := make([]string, 0, len(chain))
	missing := make([]string, 0, len(chain))
	for _, model := range chain {
		if avail.IsAvailable(model) {
			installed = append(installed, model)
		} else {
			missing = append(missing, model)
		}
	}
	if len(installed) == 0 {
		// Last-resort: keep only the final entry so exactly one call is made.
		return chain[len(chain)-1:], nil
	}
	return append(installed, missing...), nil
}

// BestModel returns the first installed model in the task's chain, or the
// chain's last entry when none are installed.
func (r *Registry) BestModel(task models.TaskType, avail *inference.Availability) (string, error) {
	ordered, err := r.OrderedChain(task, avail)
	if err != nil {
		return "", err
	}
	return ordered[0], nil
}

// Settings returns the generation knobs for a model, zero value when unset.
func (r *Registry) Settings(model string) config.ModelSettings {
	return r.settings[model]
}

// Tasks lists every task type the registry has a chain for.
func (r *Registry) Tasks() []models.TaskType {
	tasks := make([]models.TaskType, 0, len(r.chains))
	for _, t := range models.AllTaskTypes {
		if _, ok := r.chains[t]; ok {
			tasks = append(tasks, t)
		}
	}
	return tasks
}
