package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the RightsDesk server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Analysis  AnalysisConfig
	Chat      ChatConfig
	Session   SessionConfig
	Assistant AssistantConfig
	Recorder  RecorderConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	RateLimitPerMin int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// AnalysisConfig controls the simulated analysis cadence and the risk policy.
type AnalysisConfig struct {
	TickStep     int
	TickInterval time.Duration
	ReviewWindow time.Duration
}

// ChatConfig controls the staged reply cadence.
type ChatConfig struct {
	ReplyDelay    time.Duration
	ConfirmDelay  time.Duration
	NotifyWindow  time.Duration
	SubmitsPerSec float64
	SubmitBurst   int
}

type SessionConfig struct {
	IdleTTL time.Duration
}

type AssistantConfig struct {
	Provider string
	Timeout  time.Duration
}

type RecorderConfig struct {
	QueueSize int
}

var validProviders = map[string]bool{
	"template": true,
}

// LoadFile loads variables from the given .env files, if they exist, without overriding
// the process environment, then calls Load.
func LoadFile(paths ...string) (*Config, error) {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return Load()
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("RIGHTSDESK_PORT", 8080),
			Env:             envString("RIGHTSDESK_ENV", "development"),
			RateLimitPerMin: envInt("RATE_LIMIT_PER_MIN", 120),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Analysis: AnalysisConfig{
			TickStep:     envInt("ANALYSIS_TICK_STEP", 10),
			TickInterval: envDuration("ANALYSIS_TICK_INTERVAL", 200*time.Millisecond),
			ReviewWindow: envDuration("RIGHTS_REVIEW_WINDOW", 720*time.Hour),
		},
		Chat: ChatConfig{
			ReplyDelay:    envDuration("CHAT_REPLY_DELAY", time.Second),
			ConfirmDelay:  envDuration("CHAT_CONFIRM_DELAY", 2*time.Second),
			NotifyWindow:  envDuration("CHAT_NOTIFY_WINDOW", 15*time.Minute),
			SubmitsPerSec: envFloat("CHAT_SUBMITS_PER_SEC", 2),
			SubmitBurst:   envInt("CHAT_SUBMIT_BURST", 5),
		},
		Session: SessionConfig{
			IdleTTL: envDuration("SESSION_IDLE_TTL", 30*time.Minute),
		},
		Assistant: AssistantConfig{
			Provider: envString("ASSISTANT_PROVIDER", "template"),
			Timeout:  envDurationSecs("ASSISTANT_TIMEOUT_SECS", 5*time.Second),
		},
		Recorder: RecorderConfig{
			QueueSize: envInt("RECORDER_QUEUE_SIZE", 1024),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("RIGHTSDESK_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Analysis.TickStep < 1 || c.Analysis.TickStep > 100 {
		return fmt.Errorf("ANALYSIS_TICK_STEP must be between 1 and 100, got %d", c.Analysis.TickStep)
	}
	if c.Analysis.TickInterval <= 0 {
		return fmt.Errorf("ANALYSIS_TICK_INTERVAL must be positive, got %s", c.Analysis.TickInterval)
	}
	if c.Analysis.ReviewWindow <= 0 {
		return fmt.Errorf("RIGHTS_REVIEW_WINDOW must be positive, got %s", c.Analysis.ReviewWindow)
	}

	if c.Chat.ReplyDelay < 0 || c.Chat.ConfirmDelay < 0 {
		return fmt.Errorf("CHAT_REPLY_DELAY and CHAT_CONFIRM_DELAY must not be negative")
	}
	if c.Chat.NotifyWindow <= 0 {
		return fmt.Errorf("CHAT_NOTIFY_WINDOW must be positive, got %s", c.Chat.NotifyWindow)
	}
	if c.Chat.SubmitsPerSec <= 0 || c.Chat.SubmitBurst < 1 {
		return fmt.Errorf("CHAT_SUBMITS_PER_SEC and CHAT_SUBMIT_BURST must be positive")
	}

	if c.Session.IdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be positive, got %s", c.Session.IdleTTL)
	}

	if !validProviders[c.Assistant.Provider] {
		return fmt.Errorf("ASSISTANT_PROVIDER must be one of template; got %q", c.Assistant.Provider)
	}

	if c.Recorder.QueueSize < 1 {
		return fmt.Errorf("RECORDER_QUEUE_SIZE must be positive, got %d", c.Recorder.QueueSize)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
