package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultPromptDir is the subdirectory within the user's config directory.
const defaultPromptDir = ".config/optimus/prompts"

// LoadPromptContent resolves the path for a prompt template and reads its content.
// If promptDir is set, filename is resolved inside it. Otherwise the template
// is looked up under ~/.config/optimus/prompts/.
func LoadPromptContent(promptDir, filename string) (string, error) {
	var finalPath string

	if promptDir != "" {
		finalPath = filepath.Join(promptDir, filename)
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		finalPath = filepath.Join(homeDir, defaultPromptDir, filename)
	}

	promptBytes, err := os.ReadFile(finalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("prompt template not found at '%s'; create it or set pipeline.prompt_dir in config.yaml: %w", finalPath, err)
		}
		return "", fmt.Errorf("failed to read prompt file '%s': %w", finalPath, err)
	}

	return string(promptBytes), nil
}
