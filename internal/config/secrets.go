package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// KeySource names where an API key was found.
type KeySource string

const (
	KeyFromSecrets KeySource = "secrets"
	KeyFromEnv     KeySource = "env"
	KeyNotFound    KeySource = "none"
)

// secretsFile is the on-disk layout of the secrets store. Both a top-level
// OPENAI_API_KEY and an [openai] table are accepted.
type secretsFile struct {
	OpenAIAPIKey string `toml:"OPENAI_API_KEY"`
	OpenAI       struct {
		APIKey string `toml:"api_key"`
	} `toml:"openai"`
}

// ResolveAPIKey looks up the model API key, first in the secrets store and
// then in the environment named by envName. The environment is expected to
// have been populated from .env already. A missing key is reported as
// KeyNotFound with no error; callers fail later when the key is needed.
func ResolveAPIKey(secretsPath, envName string) (string, KeySource, error) {
	if secretsPath != "" {
		key, err := readSecretsKey(secretsPath)
		if err != nil {
			return "", KeyNotFound, err
		}
		if key != "" {
			return key, KeyFromSecrets, nil
		}
	}
	if envName != "" {
		if key := strings.TrimSpace(os.Getenv(envName)); key != "" {
			return key, KeyFromEnv, nil
		}
	}
	return "", KeyNotFound, nil
}

func readSecretsKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read secrets file: %w", err)
	}
	var s secretsFile
	if err := toml.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("failed to parse secrets file %s: %w", path, err)
	}
	if key := strings.TrimSpace(s.OpenAIAPIKey); key != "" {
		return key, nil
	}
	return strings.TrimSpace(s.OpenAI.APIKey), nil
}
