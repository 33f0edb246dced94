package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	LLM       LLMConfig
	Queue     QueueConfig
	RateLimit RateLimitConfig
	Features  FeatureConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type QueueConfig struct {
	Retention       time.Duration
	CleanupInterval time.Duration
	JobTimeout      time.Duration
}

// FeatureLimit holds the caps for one rate-limited feature
type FeatureLimit struct {
	PerHour int
	PerDay  int
}

type RateLimitConfig struct {
	Generation   FeatureLimit
	Modification FeatureLimit
	Analysis     FeatureLimit
}

// FeatureConfig holds kill switches. A true value disables the feature
// regardless of any other check.
type FeatureConfig struct {
	DisableGeneration   bool
	DisableModification bool
	DisableAnalysis     bool
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("llm.model", "llama-3.3-70b-versatile")
	viper.SetDefault("queue.retention", "1h")
	viper.SetDefault("queue.cleanup_interval", "10m")
	viper.SetDefault("queue.job_timeout", "10m")
	viper.SetDefault("ratelimit.generation_per_hour", 15)
	viper.SetDefault("ratelimit.generation_per_day", 75)
	viper.SetDefault("ratelimit.modification_per_hour", 10)
	viper.SetDefault("ratelimit.modification_per_day", 50)
	viper.SetDefault("ratelimit.analysis_per_hour", 20)
	viper.SetDefault("ratelimit.analysis_per_day", 100)

	// Kill switches come from the environment (DISABLE_CODE_GENERATION=true)
	viper.SetDefault("disable_code_generation", false)
	viper.SetDefault("disable_code_modification", false)
	viper.SetDefault("disable_codebase_analysis", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		LLM: LLMConfig{
			APIKey:  viper.GetString("llm.api_key"),
			BaseURL: viper.GetString("llm.base_url"),
			Model:   viper.GetString("llm.model"),
		},
		Queue: QueueConfig{
			Retention:       viper.GetDuration("queue.retention"),
			CleanupInterval: viper.GetDuration("queue.cleanup_interval"),
			JobTimeout:      viper.GetDuration("queue.job_timeout"),
		},
		RateLimit: RateLimitConfig{
			Generation: FeatureLimit{
				PerHour: viper.GetInt("ratelimit.generation_per_hour"),
				PerDay:  viper.GetInt("ratelimit.generation_per_day"),
			},
			Modification: FeatureLimit{
				PerHour: viper.GetInt("ratelimit.modification_per_hour"),
				PerDay:  viper.GetInt("ratelimit.modification_per_day"),
			},
			Analysis: FeatureLimit{
				PerHour: viper.GetInt("ratelimit.analysis_per_hour"),
				PerDay:  viper.GetInt("ratelimit.analysis_per_day"),
			},
		},
		Features: FeatureConfig{
			DisableGeneration:   viper.GetBool("disable_code_generation"),
			DisableModification: viper.GetBool("disable_code_modification"),
			DisableAnalysis:     viper.GetBool("disable_codebase_analysis"),
		},
	}

	return cfg, nil
}
