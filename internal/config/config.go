package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Session  SessionConfig
	Metrics  MetricsConfig
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// PostgresConfig represents PostgreSQL database configuration.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig represents Redis configuration, used both for pub/sub fan-out
// and as the fast store backing live session state.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig represents JWT authentication configuration shared by
// participant, controller and bigscreen tokens.
type JWTConfig struct {
	Secret           string        `mapstructure:"secret"`
	ExpirationTime   time.Duration `mapstructure:"expiration_time"`
	RefreshSecret    string        `mapstructure:"refresh_secret"`
	RefreshExpTime   time.Duration `mapstructure:"refresh_expiration_time"`
	SigningAlgorithm string        `mapstructure:"signing_algorithm"`
	Issuer           string        `mapstructure:"issuer"`
}

// SessionConfig tunes the per-session actor, timer and reconnect subsystems.
type SessionConfig struct {
	TickInterval          time.Duration `mapstructure:"tick_interval"`
	ReconnectGraceWindow  time.Duration `mapstructure:"reconnect_grace_window"`
	AnswerBufferFlush     time.Duration `mapstructure:"answer_buffer_flush"`
	MailboxSize           int           `mapstructure:"mailbox_size"`
	LeaderboardBroadcastN int           `mapstructure:"leaderboard_broadcast_top_n"`
}

// MetricsConfig controls the system-metrics broadcaster pushed to
// controller connections. ListenAddr is not read by any component: the
// Prometheus /metrics route is served on the main HTTP server.
type MetricsConfig struct {
	ListenAddr        string        `mapstructure:"listen_addr"`
	BroadcastInterval time.Duration `mapstructure:"broadcast_interval"`
}

// LoadConfig loads configuration from various sources in the following
// order of precedence:
//  1. Environment variables (with or without APP_ prefix, highest priority)
//  2. Config file specified by APP_CONFIG_FILE environment variable
//  3. Defaults set below
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVariables(v)

	if configFile := getConfigFile(); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			log.Printf("warning: unable to read config file: %v", err)
		} else {
			log.Printf("using config file: %s", v.ConfigFileUsed())
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("session.tick_interval", time.Second)
	v.SetDefault("session.reconnect_grace_window", 5*time.Minute)
	v.SetDefault("session.answer_buffer_flush", 2*time.Second)
	v.SetDefault("session.mailbox_size", 256)
	v.SetDefault("session.leaderboard_broadcast_top_n", 10)

	v.SetDefault("metrics.listen_addr", ":9090")
	v.SetDefault("metrics.broadcast_interval", 5*time.Second)
}

// bindEnvVariables explicitly binds commonly used environment variables to
// their respective config keys for better compatibility.
func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	v.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")
	v.BindEnv("server.idle_timeout", "SERVER_IDLE_TIMEOUT")

	v.BindEnv("postgres.host", "POSTGRES_HOST")
	v.BindEnv("postgres.port", "POSTGRES_PORT")
	v.BindEnv("postgres.user", "POSTGRES_USER")
	v.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	v.BindEnv("postgres.database", "POSTGRES_DB")
	v.BindEnv("postgres.sslmode", "POSTGRES_SSLMODE")

	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("jwt.expiration_time", "JWT_EXPIRATION_TIME")
	v.BindEnv("jwt.refresh_secret", "JWT_REFRESH_SECRET")
	v.BindEnv("jwt.refresh_expiration_time", "JWT_REFRESH_EXPIRATION_TIME")
	v.BindEnv("jwt.signing_algorithm", "JWT_SIGNING_ALGORITHM")
	v.BindEnv("jwt.issuer", "JWT_ISSUER")

	v.BindEnv("session.tick_interval", "SESSION_TICK_INTERVAL")
	v.BindEnv("session.reconnect_grace_window", "SESSION_RECONNECT_GRACE_WINDOW")
	v.BindEnv("session.answer_buffer_flush", "SESSION_ANSWER_BUFFER_FLUSH")
	v.BindEnv("session.mailbox_size", "SESSION_MAILBOX_SIZE")
	v.BindEnv("session.leaderboard_broadcast_top_n", "SESSION_LEADERBOARD_TOP_N")

	v.BindEnv("metrics.listen_addr", "METRICS_LISTEN_ADDR")
	v.BindEnv("metrics.broadcast_interval", "METRICS_BROADCAST_INTERVAL")
}

// getConfigFile returns the config file path from APP_CONFIG_FILE environment variable.
func getConfigFile() string {
	if configPath := os.Getenv("APP_CONFIG_FILE"); configPath != "" {
		return configPath
	}
	return ""
}

// GetConnectionString returns a formatted PostgreSQL connection string.
func (p PostgresConfig) GetConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// GetAddr returns the Redis address in the format "host:port".
func (r RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
