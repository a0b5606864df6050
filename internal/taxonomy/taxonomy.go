package taxonomy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultURL is the Google product taxonomy export, one category path per line.
const DefaultURL = "https://www.google.com/basepages/producttype/taxonomy.en-US.txt"

// Taxonomy holds the loaded category reference tree as flat " > "-delimited
// paths. Paths are kept sorted so matching is deterministic regardless of how
// the source file orders its lines.
type Taxonomy struct {
	paths  []string
	leaves []string // leaf segment of each path, same index
}

// New builds a taxonomy from raw category paths, dropping blanks and comments.
func New(paths []string) *Taxonomy {
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		cleaned = append(cleaned, p)
	}
	sort.Strings(cleaned)

	leaves := make([]string, len(cleaned))
	for i, p := range cleaned {
		segments := strings.Split(p, ">")
		leaves[i] = strings.TrimSpace(segments[len(segments)-1])
	}
	return &Taxonomy{paths: cleaned, leaves: leaves}
}

// Paths returns the sorted category paths.
func (t *Taxonomy) Paths() []string {
	return t.paths
}

// Len reports the number of categories.
func (t *Taxonomy) Len() int {
	return len(t.paths)
}

// Load returns the taxonomy from the local cache when present, otherwise
// downloads it from url and writes the cache for subsequent runs.
func Load(url, cachePath string) (*Taxonomy, error) {
	if url == "" {
		url = DefaultURL
	}
	if cachePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		cachePath = filepath.Join(home, ".cache", "optimus_taxonomy.json")
	}

	if data, err := os.ReadFile(cachePath); err == nil {
		var paths []string
		if err := json.Unmarshal(data, &paths); err == nil && len(paths) > 0 {
			return New(paths), nil
		}
		log.WithField("path", cachePath).Warn("Taxonomy cache unreadable, re-downloading")
	}

	paths, err := download(url)
	if err != nil {
		return nil, err
	}

	if err := writeCache(cachePath, paths); err != nil {
		// A failed cache write costs a re-download next run, nothing more.
		log.WithField("path", cachePath).Warnf("Failed to write taxonomy cache: %v", err)
	}

	return New(paths), nil
}

func download(url string) ([]string, error) {
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download taxonomy from %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("taxonomy download from %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy response: %w", err)
	}
	return strings.Split(string(body), "\n"), nil
}

func writeCache(cachePath string, paths []string) error {
	if err := os.MkdirAll(filepath.Dir(cachePath), 0750); err != nil {
		return err
	}
	data, err := json.Marshal(paths)
	if err != nil {
		return err
	}
	return os.WriteFile(cachePath, data, 0644)
}
