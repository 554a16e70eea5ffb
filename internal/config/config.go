package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Receipt data source
	APIEndpoint string

	// Identity provider
	IdPEndpoint     string
	IdPClientID     string
	IdPRefreshToken string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	RefreshInterval time.Duration
	DatasetsToKeep  int

	// Backend selection
	DataBackend string

	// Dashboard defaults
	DefaultRange string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8082"),

		APIEndpoint: getEnv("API_ENDPOINT", ""),

		IdPEndpoint:     getEnv("IDP_ENDPOINT", ""),
		IdPClientID:     getEnv("IDP_CLIENT_ID", ""),
		IdPRefreshToken: getEnv("IDP_REFRESH_TOKEN", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/receiptdash.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "receiptdash"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "dataset_refreshed"),

		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 15*time.Minute),
		DatasetsToKeep:  getEnvInt("DATASETS_TO_KEEP", 5),

		DataBackend: getEnv("DATA_BACKEND", "api"),

		DefaultRange: getEnv("DEFAULT_RANGE", "all"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"api", "memory"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "api" {
		if c.APIEndpoint == "" {
			errors = append(errors, "API endpoint is required when using the api backend")
		} else if parsed, err := url.Parse(c.APIEndpoint); err != nil {
			errors = append(errors, fmt.Sprintf("invalid API endpoint '%s': %v", c.APIEndpoint, err))
		} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid API endpoint scheme '%s': must be 'http' or 'https'", parsed.Scheme))
		}
	}

	// The identity provider is optional in memory mode but required whenever
	// real credentials are needed to reach the data source.
	if c.DataBackend == "api" {
		if c.IdPEndpoint == "" {
			errors = append(errors, "identity provider endpoint is required when using the api backend")
		}
		if c.IdPClientID == "" {
			errors = append(errors, "identity provider client ID is required when using the api backend")
		}
	}

	if c.SQLiteDBPath != "" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RefreshInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at least 1 second", c.RefreshInterval))
	} else if c.RefreshInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at most 24 hours", c.RefreshInterval))
	}

	if c.DatasetsToKeep < 1 {
		errors = append(errors, fmt.Sprintf("invalid datasets to keep %d: must be at least 1", c.DatasetsToKeep))
	}

	if c.DefaultRange != "" {
		rng := strings.TrimSpace(strings.ToLower(c.DefaultRange))
		if rng != "all" {
			if n, err := strconv.Atoi(rng); err != nil || n < 1 {
				errors = append(errors, fmt.Sprintf("invalid default range '%s': must be 'all' or a positive month count", c.DefaultRange))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
