package config

import (
	"os"
	"strings"
)

const (
	appEnvVar              = "APP_ENV"
	environmentDevelopment = "development"
	environmentProduction  = "production"
	environmentStaging     = "staging"
)

const (
	// EnvironmentDevelopment is the canonical development identifier.
	EnvironmentDevelopment = environmentDevelopment
	// EnvironmentProduction is the canonical production identifier.
	EnvironmentProduction = environmentProduction
	// EnvironmentStaging is the canonical staging identifier.
	EnvironmentStaging = environmentStaging
)

var environmentAliases = map[string]string{
	"prod":  environmentProduction,
	"dev":   environmentDevelopment,
	"stag":  environmentStaging,
	"stage": environmentStaging,
}

// envConfigPaths maps an environment to the file that replaces
// DefaultConfigPath when it is in effect.
var envConfigPaths = map[string]string{
	environmentProduction: "config/config.production.yml",
	environmentStaging:    "config/config.staging.yml",
}

// getAppEnvironment reads the application environment from APP_ENV and
// defaults to development when no value is provided.
func getAppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return environmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// resolveEnvSpecificPath selects an environment specific configuration file
// when the caller asked for the default one and a variant exists on disk.
func resolveEnvSpecificPath(path, defaultPath string, envPaths map[string]string) string {
	if path == "" {
		path = defaultPath
	}
	if path != defaultPath {
		return path
	}

	env := getAppEnvironment()
	if envPath, ok := envPaths[env]; ok {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	return path
}

// AppEnvironment exposes the normalised APP_ENV value.
func AppEnvironment() string {
	return getAppEnvironment()
}

// IsProductionLike reports whether env should be strict about missing
// configuration files.
func IsProductionLike(env string) bool {
	switch env {
	case environmentProduction, environmentStaging:
		return true
	default:
		return false
	}
}
