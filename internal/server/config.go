package server

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the relay server settings.
type Config struct {
	Env                     string
	Port                    string
	AllowedOrigins          []string
	SocketPaths             []string
	MaxMessageSize          int64
	SendBufferSize          int
	SingleRoomPerConnection bool
	ShutdownTimeout         time.Duration
}

const (
	defaultPort            = ":8000"
	defaultMaxMessageSize  = 16 * 1024
	defaultSendBufferSize  = 256
	defaultShutdownTimeout = 10 * time.Second
)

func defaultConfig() Config {
	return Config{
		Env:             "dev",
		Port:            defaultPort,
		AllowedOrigins:  []string{"*"},
		SocketPaths:     []string{"/api/socket", "/api/socketio"},
		MaxMessageSize:  defaultMaxMessageSize,
		SendBufferSize:  defaultSendBufferSize,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

// sanitizeConfig fills zero or invalid fields with their defaults and
// normalizes the socket paths.
func sanitizeConfig(cfg Config) Config {
	defaults := defaultConfig()

	if cfg.Env == "" {
		cfg.Env = defaults.Env
	}
	if cfg.Port == "" {
		cfg.Port = defaults.Port
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaults.SendBufferSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}

	paths := normalizePaths(cfg.SocketPaths)
	if len(paths) == 0 {
		paths = defaults.SocketPaths
	}
	cfg.SocketPaths = paths
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config from environment variables, falling back
// to defaults for anything unset or invalid.
func NewConfigFromEnv() *Config {
	return newConfigFromLookup(os.Getenv)
}

// LoadConfig reads the given .env files (missing files are skipped) and then
// builds the config from the environment. Variables already set in the
// process environment take precedence over file values.
func LoadConfig(envFiles ...string) (*Config, error) {
	fileValues := make(map[string]string)
	for _, path := range envFiles {
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read env file %s: %w", path, err)
		}
		maps.Copy(fileValues, values)
	}

	return newConfigFromLookup(func(key string) string {
		if value := os.Getenv(key); value != "" {
			return value
		}
		return fileValues[key]
	}), nil
}

func newConfigFromLookup(getenv func(string) string) *Config {
	cfg := defaultConfig()

	if env := getenv("APP_ENV"); env != "" {
		cfg.Env = env
	}

	if port := getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}

	if origins := getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseList(origins)
	}

	if paths := getenv("SOCKET_PATHS"); paths != "" {
		cfg.SocketPaths = parseList(paths)
	}

	if maxSize := getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}

	if size := getenv("SEND_BUFFER_SIZE"); size != "" {
		cfg.SendBufferSize = parseIntValue(size, cfg.SendBufferSize)
	}

	if single := getenv("SINGLE_ROOM_PER_CONNECTION"); single != "" {
		cfg.SingleRoomPerConnection = parseBool(single, cfg.SingleRoomPerConnection)
	}

	if timeout := getenv("SHUTDOWN_TIMEOUT"); timeout != "" {
		cfg.ShutdownTimeout = parseSeconds(timeout, cfg.ShutdownTimeout)
	}

	cfg = sanitizeConfig(cfg)
	return &cfg
}

func parseList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// normalizePaths keeps absolute paths, adds a missing leading slash and
// drops duplicates.
func normalizePaths(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseBool(value string, defaultValue bool) bool {
	if parsed, err := strconv.ParseBool(value); err == nil {
		return parsed
	}
	return defaultValue
}

func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
