// Package config handles configuration loading and management
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingCredentials is returned by the Require* helpers when a scenario
// cannot run with the loaded configuration.
var ErrMissingCredentials = errors.New("missing credentials")

// Config holds the harness configuration loaded from environment variables.
type Config struct {
	LoginURL      string
	Username      string
	Password      string
	Token         string
	APIBaseURL    string
	APIVersion    string
	HomeURL       string
	ExpectedUser  string
	Headless      bool
	ChromePath    string
	LogLevel      string
	MaxPreview    int
	APITimeout    time.Duration
	InjectRequest bool
	RedactionFile string
	ArtifactsDir  string
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// It's okay if the file doesn't exist
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		LoginURL:      getEnv("SF_URL", "https://login.salesforce.com"),
		Username:      getEnv("SF_USERNAME", ""),
		Password:      getEnv("SF_PASSWORD", ""),
		Token:         getEnv("SF_TOKEN", ""),
		APIBaseURL:    getEnv("SF_API_BASE_URL", ""),
		APIVersion:    getEnv("SF_API_VERSION", "v61.0"),
		HomeURL:       getEnv("SF_HOME_URL", ""),
		ExpectedUser:  getEnv("SF_EXPECTED_USER", ""),
		ChromePath:    getEnv("CHROME_PATH", ""),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		RedactionFile: getEnv("REDACTION_CONFIG", ""),
		ArtifactsDir:  getEnv("ARTIFACTS_DIR", "."),
	}

	headless, err := strconv.ParseBool(getEnv("HEADLESS", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid HEADLESS: %w", err)
	}
	cfg.Headless = headless

	maxPreview, err := strconv.Atoi(getEnv("LOG_MAX_PREVIEW", strconv.Itoa(DefaultMaxPreview)))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_MAX_PREVIEW: %w", err)
	}
	if maxPreview <= 0 {
		return nil, fmt.Errorf("invalid LOG_MAX_PREVIEW: must be positive, got %d", maxPreview) //nolint:err113 // Include value for debugging
	}
	cfg.MaxPreview = maxPreview

	timeout, err := time.ParseDuration(getEnv("API_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_TIMEOUT: %w", err)
	}
	cfg.APITimeout = timeout

	inject, err := strconv.ParseBool(getEnv("API_INJECT_REQUEST_ID", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_INJECT_REQUEST_ID: %w", err)
	}
	cfg.InjectRequest = inject

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// APILimitsPath returns the versioned path of the org limits resource.
func (c *Config) APILimitsPath() string {
	return fmt.Sprintf("/services/data/%s/limits", c.APIVersion)
}

// APILimitsEndpoint returns the absolute URL of the org limits resource.
func (c *Config) APILimitsEndpoint() string {
	return strings.TrimRight(c.APIBaseURL, "/") + c.APILimitsPath()
}

// RequireAPI reports whether the REST API can be exercised.
func (c *Config) RequireAPI() error {
	if c.APIBaseURL == "" || c.Token == "" {
		return fmt.Errorf("%w: set SF_API_BASE_URL and SF_TOKEN in .env to run API tests", ErrMissingCredentials)
	}
	return nil
}

// RequireLogin reports whether the interactive login can be exercised.
func (c *Config) RequireLogin() error {
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("%w: set SF_USERNAME and SF_PASSWORD in .env", ErrMissingCredentials)
	}
	return nil
}

// Path resolves an artifact location relative to ArtifactsDir.
func (c *Config) Path(rel string) string {
	return filepath.Join(c.ArtifactsDir, rel)
}

func (c *Config) String() string {
	passwordDisplay := "(not set)"
	if c.Password != "" {
		passwordDisplay = "********"
	}

	tokenDisplay := "(not set)"
	if c.Token != "" {
		tokenDisplay = "********"
	}

	usernameDisplay := c.Username
	if usernameDisplay == "" {
		usernameDisplay = "(not set)"
	}

	apiDisplay := c.APIBaseURL
	if apiDisplay == "" {
		apiDisplay = "(not set)"
	}

	return fmt.Sprintf(`Current Configuration:
======================
Login URL:         %s
Username:          %s
Password:          %s
API Base URL:      %s
API Version:       %s
API Token:         %s
API Timeout:       %s
Headless:          %t
Log Level:         %s
Log Max Preview:   %d
Artifacts Dir:     %s`,
		c.LoginURL,
		usernameDisplay,
		passwordDisplay,
		apiDisplay,
		c.APIVersion,
		tokenDisplay,
		c.APITimeout,
		c.Headless,
		c.LogLevel,
		c.MaxPreview,
		c.ArtifactsDir,
	)
}
