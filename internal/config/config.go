package config

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	LLM     LLMConfig
	Server  ServerConfig
	History HistoryConfig
	Redis   RedisConfig
	Log     LogConfig
}

// LLMConfig holds the completion backend configuration
type LLMConfig struct {
	Provider     string `mapstructure:"provider"`
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// HistoryConfig selects where archived chat sessions are kept.
type HistoryConfig struct {
	Backend     string `mapstructure:"backend"`
	Path        string `mapstructure:"path"`
	KeyPrefix   string `mapstructure:"key_prefix"`
	MaxEntries  int    `mapstructure:"max_entries"`
	TitleLength int    `mapstructure:"title_length"`
	MaxWidgets  int    `mapstructure:"max_widgets"`
}

// RedisConfig holds the redis connection settings used by the redis history backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.system_prompt", "")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("history.backend", BackendSQLite)
	v.SetDefault("history.path", "history.db")
	v.SetDefault("history.key_prefix", "chat-history")
	v.SetDefault("history.max_entries", 20)
	v.SetDefault("history.title_length", 30)
	v.SetDefault("history.max_widgets", 1024)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.level", "info")
}

// Load loads the configuration from config.yaml, or from the file named by
// CONFIG_PATH. A missing config file is not an error: defaults and
// LANDING_* environment variables still apply.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("landing")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("llm.api_key", "LANDING_LLM_API_KEY", "GROQ_API_KEY"); err != nil {
		return nil, err
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
