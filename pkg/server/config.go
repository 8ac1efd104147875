package server

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds server configuration
type Config struct {
	DatabaseMode    bool
	HTTPMode        bool
	HTTPAddr        string
	DatabaseURL     string
	Port            int
	SpecFiles       []string
	SpecsDir        string
	RequestTimeout  time.Duration
	PollInterval    time.Duration
	RequiredEnvVars map[string]string
}

// LoadConfig loads configuration from environment variables and command line arguments
func LoadConfig(args []string) (*Config, error) {
	config := &Config{
		SpecsDir:        "./specs",
		RequestTimeout:  30 * time.Second,
		PollInterval:    30 * time.Second,
		RequiredEnvVars: make(map[string]string),
	}

	// Check for database mode
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.DatabaseMode = true
		config.DatabaseURL = dbURL
		log.Println("Database mode enabled")
	}

	if dir := os.Getenv("SPECS_DIR"); dir != "" {
		config.SpecsDir = dir
	}

	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("REQUEST_TIMEOUT must be a positive number of seconds, got %q", v)
		}
		config.RequestTimeout = time.Duration(secs) * time.Second
	}

	if v := os.Getenv("POLLING_INTERVAL"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs < 0 {
			return nil, fmt.Errorf("POLLING_INTERVAL must be a non-negative number of seconds, got %q", v)
		}
		config.PollInterval = time.Duration(secs) * time.Second
	}
	if v := os.Getenv("DISABLE_POLLING"); v == "true" || v == "1" {
		config.PollInterval = 0
	}

	// Check for HTTP mode
	httpAddr := ""
	for i, arg := range args {
		if arg == "--http" && i+1 < len(args) {
			httpAddr = args[i+1]
			break
		}
	}
	if httpAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			httpAddr = ":" + port
		}
	}
	if httpAddr != "" {
		config.HTTPMode = true
		config.HTTPAddr = httpAddr
		log.Printf("HTTP mode enabled on %s", httpAddr)
	}

	// Parse port for HTTP mode
	if config.HTTPMode && config.HTTPAddr != "" {
		if config.HTTPAddr[0] == ':' {
			if port, err := strconv.Atoi(config.HTTPAddr[1:]); err == nil {
				config.Port = port
			}
		}
	}

	// In file mode, collect spec files from arguments
	if !config.DatabaseMode {
		skip := false
		for _, arg := range args {
			if skip {
				skip = false
				continue
			}
			if arg == "--http" {
				skip = true
				continue
			}
			config.SpecFiles = append(config.SpecFiles, arg)
		}
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DatabaseMode {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for database mode")
		}
		if !strings.HasPrefix(c.DatabaseURL, "postgresql://") && !strings.HasPrefix(c.DatabaseURL, "postgres://") {
			return fmt.Errorf("DATABASE_URL must be a postgresql:// connection string")
		}
	}
	return nil
}

// LogConfiguration logs the current configuration
func (c *Config) LogConfiguration() {
	if c.DatabaseMode {
		log.Println("Running in database mode")
		log.Printf("Database URL: %s", maskSensitive(c.DatabaseURL))
	} else {
		log.Printf("Running in file mode with %d spec files", len(c.SpecFiles))
	}

	if c.HTTPMode {
		log.Printf("HTTP server will start on %s", c.HTTPAddr)
	}
	log.Printf("Request timeout: %s", c.RequestTimeout)
}

// maskSensitive masks sensitive parts of URLs for logging
func maskSensitive(url string) string {
	if len(url) > 20 {
		return url[:8] + "***" + url[len(url)-8:]
	}
	return "***"
}
