package inference

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ModelLister is what the availability snapshot needs from the client.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Availability is the cached set of installed models for one pipeline run.
// It is written once at run start and read-only afterwards, so concurrent
// workers can consult it without locking.
type Availability struct {
	installed map[string]bool
}

// Snapshot queries the inference host once and caches the installed model
// set. A listing failure yields an empty snapshot — models then simply
// appear unavailable; it never aborts the run.
func Snapshot(ctx context.Context, lister ModelLister) *Availability {
	names, err := lister.ListModels(ctx)
	if err != nil {
		log.Warnf("Failed to list installed models, treating all as unavailable: %v", err)
		return &Availability{installed: map[string]bool{}}
	}

	installed := make(map[string]bool, len(names))
	for _, name := range names {
		installed[normalizeModelName(name)] = true
	}
	log.WithField("count", len(installed)).Debug("Cached model availability snapshot")
	return &Availability{installed: installed}
}

// NewAvailability builds a snapshot from a fixed model set; used by tests
// and dry runs.
func NewAvailability(models []string) *Availability {
	installed := make(map[string]bool, len(models))
	for _, name := range models {
		installed[normalizeModelName(name)] = true
	}
	return &Availability{installed: installed}
}

// IsAvailable reports whether a model is installed on the host.
func (a *Availability) IsAvailable(model string) bool {
	return a.installed[normalizeModelName(model)]
}

// Ollama reports "name:latest" for untagged pulls; treat that and the bare
// name as the same model.
func normalizeModelName(name string) string {
	return strings.TrimSuffix(strings.TrimSpace(name), ":latest")
}
