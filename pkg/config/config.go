package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ModePool      = "pool"
	ModeMultiplex = "multiplex"

	BackendFile   = "file"
	BackendPebble = "pebble"
)

// Config holds all configuration for the application
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Logger  LoggerConfig  `mapstructure:"logger"`
}

type AppConfig struct {
	Env string `mapstructure:"env"` // e.g., "local", "prod"
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Mode        string `mapstructure:"mode"` // "pool" or "multiplex"
	Workers     int    `mapstructure:"workers"`
	QueueSize   int    `mapstructure:"queue_size"`
	MaxClients  int    `mapstructure:"max_clients"`
	MessageSize int    `mapstructure:"message_size"`
	Capacity    int    `mapstructure:"capacity"` // catalog slots
}

type StoreConfig struct {
	Backend   string `mapstructure:"backend"` // "file" or "pebble"
	Path      string `mapstructure:"path"`
	PebbleDir string `mapstructure:"pebble_dir"`
}

// RedisConfig enables the update feed and catalog mirror when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig enables the trade event producer when Brokers is non-empty.
type KafkaConfig struct {
	Brokers        []string      `mapstructure:"brokers"`
	Topic          string        `mapstructure:"topic"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// GatewayConfig enables the WebSocket transport when Addr is set.
type GatewayConfig struct {
	Addr string `mapstructure:"addr"`
}

type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"` // "json" or "console"
	Development bool   `mapstructure:"development"`
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Load .env into the process environment (if it exists)
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	setDefaults(v)

	// "server.mode" -> "SERVER_MODE"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnv(v, "app.env")
	bindEnv(v, "server.host", "server.mode", "server.workers", "server.queue_size",
		"server.max_clients", "server.message_size", "server.capacity")
	bindEnv(v, "store.backend", "store.path", "store.pebble_dir")
	bindEnv(v, "redis.addr", "redis.password", "redis.db")
	bindEnv(v, "kafka.brokers", "kafka.topic", "kafka.publish_timeout")
	bindEnv(v, "gateway.addr")
	bindEnv(v, "logger.level", "logger.encoding", "logger.development")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	// A comma separated KAFKA_BROKERS arrives as a single element
	if len(cfg.Kafka.Brokers) == 1 && strings.Contains(cfg.Kafka.Brokers[0], ",") {
		cfg.Kafka.Brokers = strings.Split(cfg.Kafka.Brokers[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "local")

	v.SetDefault("server.host", "")
	v.SetDefault("server.mode", ModePool)
	v.SetDefault("server.workers", 4)
	v.SetDefault("server.queue_size", 16)
	v.SetDefault("server.max_clients", 1024)
	v.SetDefault("server.message_size", 8192)
	v.SetDefault("server.capacity", 1024)

	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.path", "stock.txt")
	v.SetDefault("store.pebble_dir", "./stock_db")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "stock_trades")
	v.SetDefault("kafka.publish_timeout", 2*time.Second)

	v.SetDefault("gateway.addr", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")
	v.SetDefault("logger.development", false)
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Server.Mode {
	case ModePool, ModeMultiplex:
	default:
		return fmt.Errorf("server mode must be %q or %q, got %q", ModePool, ModeMultiplex, c.Server.Mode)
	}
	if c.Server.Workers <= 0 {
		return fmt.Errorf("server workers must be positive")
	}
	if c.Server.QueueSize <= 0 {
		return fmt.Errorf("server queue size must be positive")
	}
	if c.Server.MaxClients <= 0 {
		return fmt.Errorf("server max clients must be positive")
	}
	if c.Server.MessageSize < 64 {
		return fmt.Errorf("server message size must be at least 64 bytes")
	}
	if c.Server.Capacity <= 0 {
		return fmt.Errorf("server capacity must be positive")
	}
	switch c.Store.Backend {
	case BackendFile:
		if c.Store.Path == "" {
			return fmt.Errorf("store path cannot be empty")
		}
	case BackendPebble:
		if c.Store.PebbleDir == "" {
			return fmt.Errorf("store pebble dir cannot be empty")
		}
	default:
		return fmt.Errorf("store backend must be %q or %q, got %q", BackendFile, BackendPebble, c.Store.Backend)
	}
	return nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
