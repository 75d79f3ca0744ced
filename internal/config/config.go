// Package config provides YAML-based configuration with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// AppConfig is the root configuration structure.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Processing ProcessingConfig `yaml:"processing"`
	Services   ServicesConfig   `yaml:"services"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int    `yaml:"port" envconfig:"PORT"`
	BindAddress  string `yaml:"bindAddress" envconfig:"BIND_ADDRESS"`
	EnableCORS   bool   `yaml:"enableCors" envconfig:"ENABLE_CORS"`
	AllowOrigins string `yaml:"allowOrigins" envconfig:"ALLOW_ORIGINS"`
	ReadTimeout  int    `yaml:"readTimeoutSeconds" envconfig:"READ_TIMEOUT"`
	WriteTimeout int    `yaml:"writeTimeoutSeconds" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout  int    `yaml:"idleTimeoutSeconds" envconfig:"IDLE_TIMEOUT"`
	BodyLimit    string `yaml:"bodyLimit" envconfig:"BODY_LIMIT"`
}

// StorageConfig contains artifact storage settings.
type StorageConfig struct {
	DataDirectory      string `yaml:"dataDirectory" envconfig:"DATA_DIR"`
	ArtifactsDirectory string `yaml:"artifactsDirectory" envconfig:"ARTIFACTS_DIR"`
}

// ProcessingConfig contains pipeline tuning knobs.
type ProcessingConfig struct {
	MaxConcurrentTransfers int `yaml:"maxConcurrentTransfers" envconfig:"MAX_CONCURRENT_TRANSFERS"`
	WorkflowTimeoutMinutes int `yaml:"workflowTimeoutMinutes" envconfig:"WORKFLOW_TIMEOUT"`
	CleanupIntervalMinutes int `yaml:"cleanupIntervalMinutes" envconfig:"CLEANUP_INTERVAL"`
	MaxWorkflows           int `yaml:"maxWorkflows" envconfig:"MAX_WORKFLOWS"`
}

// ServicesConfig locates the external analysis service and cloud storage.
type ServicesConfig struct {
	AnalysisURL          string `yaml:"analysisUrl" envconfig:"ANALYSIS_URL"`
	AnalysisTimeout      int    `yaml:"analysisTimeoutSeconds" envconfig:"ANALYSIS_TIMEOUT"`
	WaitForAnalysis      bool   `yaml:"waitForAnalysis" envconfig:"WAIT_FOR_ANALYSIS"`
	CloudEndpoint        string `yaml:"cloudEndpoint" envconfig:"CLOUD_ENDPOINT"`
	CloudAccessKey       string `yaml:"cloudAccessKey" envconfig:"CLOUD_ACCESS_KEY"`
	CloudSecretKey       string `yaml:"cloudSecretKey" envconfig:"CLOUD_SECRET_KEY"`
	CloudUseSSL          bool   `yaml:"cloudUseSsl" envconfig:"CLOUD_USE_SSL"`
	URLImportTimeout     int    `yaml:"urlImportTimeoutSeconds" envconfig:"URL_IMPORT_TIMEOUT"`
	MaxURLImportParallel int    `yaml:"maxUrlImportParallel" envconfig:"MAX_URL_IMPORT_PARALLEL"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 60,
			IdleTimeout:  120,
			BodyLimit:    "2G",
		},
		Storage: StorageConfig{
			DataDirectory:      "./data",
			ArtifactsDirectory: "./data/artifacts",
		},
		Processing: ProcessingConfig{
			MaxConcurrentTransfers: 3,
			WorkflowTimeoutMinutes: 30,
			CleanupIntervalMinutes: 5,
			MaxWorkflows:           32,
		},
		Services: ServicesConfig{
			AnalysisURL:          "http://localhost:9100",
			AnalysisTimeout:      60,
			WaitForAnalysis:      false,
			CloudUseSSL:          true,
			URLImportTimeout:     30,
			MaxURLImportParallel: 4,
		},
	}
}

// Load reads configuration from a YAML file, creating it with defaults when
// missing, then applies DRIFTGATE_* environment overrides.
func Load(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := envconfig.Process("driftgate", config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	config.resolvePaths(filepath.Dir(configPath))
	return config, nil
}

// Save writes the configuration to a YAML file.
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# DriftGate backend configuration\n# Auto-generated on first run\n\n")
	if err := os.WriteFile(configPath, append(header, output...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// resolvePaths converts relative paths to absolute based on config file location.
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.ArtifactsDirectory) {
		c.Storage.ArtifactsDirectory = filepath.Join(configDir, c.Storage.ArtifactsDirectory)
	}
}

// EnsureDirectories creates the storage directories if they do not exist.
func (c *AppConfig) EnsureDirectories() error {
	for _, dir := range []string{c.Storage.DataDirectory, c.Storage.ArtifactsDirectory} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetServerAddr returns the server bind address.
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}
