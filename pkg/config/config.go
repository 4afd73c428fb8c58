// Package config assembles the application-level configuration (LLM
// credentials, vector-store location, queue broker URL, app identity)
// from the environment, and the YAML-defined catalog seed used to
// bootstrap pkg/store on first deploy.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// AppConfig holds every environment-sourced application setting.
type AppConfig struct {
	AppName    string
	APIVersion string
	Debug      bool

	LLMAPIKey string
	LLMModel  string

	DocStoreURI string
	DocStoreDB  string

	VectorStoreHost       string
	VectorStorePort       int
	VectorStoreCollection string

	QueueBrokerURL string

	PromptDir       string
	CatalogSeedPath string
}

// LoadEnvFile loads a local .env file into the process environment if
// present; a missing file is not an error (production deploys set real
// environment variables instead).
func LoadEnvFile(path string) {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
	}
}

// LoadAppConfig reads AppConfig from the environment, applying defaults
// for anything unset.
func LoadAppConfig() (AppConfig, error) {
	port, err := strconv.Atoi(getEnvOrDefault("VECTOR_STORE_PORT", "8000"))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid VECTOR_STORE_PORT: %w", err)
	}

	cfg := AppConfig{
		AppName:    getEnvOrDefault("APP_NAME", "tarsy-orchestrator"),
		APIVersion: getEnvOrDefault("API_VERSION", "v1"),
		Debug:      getEnvOrDefault("DEBUG", "false") == "true",

		LLMAPIKey: os.Getenv("LLM_API_KEY"),
		LLMModel:  getEnvOrDefault("LLM_MODEL", "gpt-4o-mini"),

		DocStoreURI: getEnvOrDefault("DOC_STORE_URI", "postgres://localhost:5432"),
		DocStoreDB:  getEnvOrDefault("DOC_STORE_DB", "orchestrator"),

		VectorStoreHost:       getEnvOrDefault("VECTOR_STORE_HOST", "localhost"),
		VectorStorePort:       port,
		VectorStoreCollection: getEnvOrDefault("VECTOR_STORE_COLLECTION", "long_term_memory"),

		QueueBrokerURL: getEnvOrDefault("QUEUE_BROKER_URL", ""),

		PromptDir:       getEnvOrDefault("PROMPT_DIR", "deploy/prompts"),
		CatalogSeedPath: getEnvOrDefault("CATALOG_SEED_PATH", "deploy/catalog"),
	}

	if cfg.LLMAPIKey == "" {
		return AppConfig{}, fmt.Errorf("LLM_API_KEY must be set")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
