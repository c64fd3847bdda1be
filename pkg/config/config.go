package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Tutor     TutorConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins []string
	Development    bool
}

// StorageConfig selects the memory store backend: "memory" or "sqlite".
type StorageConfig struct {
	Driver string
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

// LLMConfig configures the optional completion collaborator. Provider "none"
// keeps every answer on the local topic catalog.
type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type TutorConfig struct {
	HistoryCap    int
	ContextLimit  int
	LookbackTurns int
	ConceptDelta  float64
	DefaultLevel  float64
	SimplifyBelow float64
	AdvancedAbove float64
	SelectionMode string
	CatalogDir    string
}

type RateLimitConfig struct {
	RequestsPerMinute int
	MaxMessageLength  int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/genetics-tutor")

	v.SetEnvPrefix("TUTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the tutor cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.LLM.Provider {
	case "none", "openai", "anthropic":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	switch c.Tutor.SelectionMode {
	case "lookup", "ranked":
	default:
		return fmt.Errorf("unknown selection mode %q", c.Tutor.SelectionMode)
	}

	if c.Tutor.HistoryCap < 2 {
		return fmt.Errorf("tutor.historyCap must be at least 2, got %d", c.Tutor.HistoryCap)
	}
	if c.Tutor.DefaultLevel < 1 || c.Tutor.DefaultLevel > 5 {
		return fmt.Errorf("tutor.defaultLevel must be within [1,5], got %.2f", c.Tutor.DefaultLevel)
	}
	if c.Tutor.ConceptDelta <= 0 || c.Tutor.ConceptDelta > 1 {
		return fmt.Errorf("tutor.conceptDelta must be within (0,1], got %.3f", c.Tutor.ConceptDelta)
	}

	return nil
}

// LLMEnabled reports whether a completion collaborator should be built.
func (c *Config) LLMEnabled() bool {
	return c.LLM.Provider != "none" && c.LLM.APIKey != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 60)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("server.development", false)

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("sqlite.path", "./data/tutor.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttlSec", 3600)

	v.SetDefault("llm.provider", "none")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.baseURL", "")
	v.SetDefault("llm.temperature", 0.4)
	v.SetDefault("llm.maxTokens", 800)
	v.SetDefault("llm.timeoutSec", 30)

	v.SetDefault("tutor.historyCap", 20)
	v.SetDefault("tutor.contextLimit", 5)
	v.SetDefault("tutor.lookbackTurns", 10)
	v.SetDefault("tutor.conceptDelta", 0.03)
	v.SetDefault("tutor.defaultLevel", 3.0)
	v.SetDefault("tutor.simplifyBelow", 2.5)
	v.SetDefault("tutor.advancedAbove", 4.0)
	v.SetDefault("tutor.selectionMode", "lookup")
	v.SetDefault("tutor.catalogDir", "")

	v.SetDefault("rateLimit.requestsPerMinute", 60)
	v.SetDefault("rateLimit.maxMessageLength", 2000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
