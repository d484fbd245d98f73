// Package secrets loads sensitive configuration from the environment or from
// mounted secret files (the Docker/Kubernetes SECRET_NAME_FILE convention).
package secrets

import (
	"fmt"
	"os"
	"strings"
)

// GetSecret resolves envKey, preferring a _FILE variant pointing at a mounted
// secret over the plain environment variable.
func GetSecret(envKey string, defaultValue string) (string, error) {
	if filePath := os.Getenv(envKey + "_FILE"); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("read secret file %s: %w", filePath, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if value := os.Getenv(envKey); value != "" {
		return value, nil
	}

	return defaultValue, nil
}

// GetOptionalSecret resolves envKey and falls back to defaultValue on any
// failure, including an unreadable secret file.
func GetOptionalSecret(envKey string, defaultValue string) string {
	value, err := GetSecret(envKey, defaultValue)
	if err != nil {
		return defaultValue
	}
	return value
}
