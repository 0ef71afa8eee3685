package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Consul   ConsulConfig   `json:"consul"`
	Jaeger   JaegerConfig   `json:"jaeger"`
	Auth     AuthConfig     `json:"auth"`
	Storage  StorageConfig  `json:"storage"`
	Log      LogConfig      `json:"log"`
}

// ServerConfig HTTP server settings.
type ServerConfig struct {
	Name     string `json:"name"`      // service name (Consul registration, tracing)
	Host     string `json:"host"`      // listen address
	HTTPPort int    `json:"http_port"` // HTTP port
}

// DatabaseConfig MySQL settings.
type DatabaseConfig struct {
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	MaxIdle  int    `json:"max_idle"`
	MaxOpen  int    `json:"max_open"`
}

// ConsulConfig Consul agent address.
type ConsulConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// JaegerConfig tracing settings.
type JaegerConfig struct {
	Endpoint string  `json:"endpoint"`
	Sampler  float64 `json:"sampler"` // sample rate 0.0-1.0
}

// AuthConfig admin authentication settings.
//
// The admin credential is a single shared password supplied at deploy time.
// Prefer the hash+salt pair; the plaintext field exists for dev setups only.
type AuthConfig struct {
	Enabled           bool     `json:"enabled"`
	JWTSecret         string   `json:"jwt_secret"`
	Issuer            string   `json:"issuer"`
	Audience          string   `json:"audience"`
	TokenTTLMinutes   int      `json:"token_ttl_minutes"`
	AdminPassword     string   `json:"admin_password"`      // plaintext compare (dev only)
	AdminPasswordHash string   `json:"admin_password_hash"` // hex, salted iterated sha256
	AdminPasswordSalt string   `json:"admin_password_salt"` // hex
	PublicPaths       []string `json:"public_paths"`        // paths served without a token
}

// StorageConfig local file storage (per-device lookup state).
type StorageConfig struct {
	DataDir string `json:"data_dir"`
}

// LogConfig logging settings.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, file
	Path   string `json:"path"`   // log file path
}

var (
	globalConfig *Config
	configOnce   sync.Once
)

// LoadConfig reads the JSON config file, falling back to defaults when the
// file does not exist.
func LoadConfig(configPath string) (*Config, error) {
	var err error
	configOnce.Do(func() {
		globalConfig = &Config{}
		if _, err = os.Stat(configPath); os.IsNotExist(err) {
			logrus.Warnf("Config file not found: %s, using default config", configPath)
			globalConfig = defaultConfig()
			err = nil
			return
		}

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file: %w", readErr)
			return
		}

		if unmarshalErr := json.Unmarshal(data, globalConfig); unmarshalErr != nil {
			err = fmt.Errorf("failed to parse config file: %w", unmarshalErr)
			return
		}
	})

	if err != nil {
		return nil, err
	}

	return globalConfig, nil
}

// GetConfig returns the loaded config, or defaults before LoadConfig ran.
func GetConfig() *Config {
	if globalConfig == nil {
		return defaultConfig()
	}
	return globalConfig
}

// defaultConfig development defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:     "credencial-service",
			Host:     "0.0.0.0",
			HTTPPort: 8080,
		},
		Database: DatabaseConfig{
			Driver:   "mysql",
			Host:     "localhost",
			Port:     3306,
			User:     "root",
			Password: "root",
			Database: "credencial",
			MaxIdle:  10,
			MaxOpen:  100,
		},
		Consul: ConsulConfig{
			Host: "localhost",
			Port: 8500,
		},
		Jaeger: JaegerConfig{
			Endpoint: "localhost:6831",
			Sampler:  1.0,
		},
		Auth: AuthConfig{
			Enabled:         true,
			JWTSecret:       "dev-secret-change-me",
			Issuer:          "credencial-acceso",
			Audience:        "credencial-acceso",
			TokenTTLMinutes: 12 * 60,
			AdminPassword:   "admin123",
			PublicPaths: []string{
				"/healthz",
				"/api/login",
				"/api/credential",
				"/api/credential/last",
			},
		},
		Storage: StorageConfig{
			DataDir: "data",
		},
		Log: LogConfig{
			Level:  "debug",
			Format: "text",
			Output: "stdout",
			Path:   "logs/app.log",
		},
	}
}
