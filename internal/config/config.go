package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Realtime  RealtimeConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port          string
	Host          string
	Environment   string
	AllowedOrigin string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// JWTConfig carries independent secrets and TTLs for access and refresh
// tokens so that compromising one secret does not compromise the other.
type JWTConfig struct {
	AccessSecret    string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type RealtimeConfig struct {
	HandshakeTimeout time.Duration
	SendBuffer       int
	MaxSendFailures  int
}

type RateLimitConfig struct {
	Enabled       bool
	RPS           float64
	Burst         int
	UseRedis      bool
	WindowSeconds int
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("WS_ALLOWED_ORIGIN", "*")
	viper.SetDefault("MONGODB_DATABASE", "mingle")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("ACCESS_TOKEN_TTL", 15)     // minutes
	viper.SetDefault("REFRESH_TOKEN_TTL", 10080) // minutes (7 days)
	viper.SetDefault("REALTIME_HANDSHAKE_TIMEOUT", 10)
	viper.SetDefault("REALTIME_SEND_BUFFER", 64)
	viper.SetDefault("REALTIME_MAX_SEND_FAILURES", 8)
	viper.SetDefault("RATE_LIMIT_ENABLED", false)
	viper.SetDefault("RATE_LIMIT_RPS", 10.0)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 10)

	cfg := &Config{
		Server: ServerConfig{
			Port:          viper.GetString("SERVER_PORT"),
			Host:          viper.GetString("SERVER_HOST"),
			Environment:   viper.GetString("SERVER_ENVIRONMENT"),
			AllowedOrigin: viper.GetString("WS_ALLOWED_ORIGIN"),
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		JWT: JWTConfig{
			AccessSecret:    os.Getenv("ACCESS_TOKEN_SECRET"),
			RefreshSecret:   os.Getenv("REFRESH_TOKEN_SECRET"),
			AccessTokenTTL:  time.Duration(viper.GetInt("ACCESS_TOKEN_TTL")) * time.Minute,
			RefreshTokenTTL: time.Duration(viper.GetInt("REFRESH_TOKEN_TTL")) * time.Minute,
		},
		Realtime: RealtimeConfig{
			HandshakeTimeout: time.Duration(viper.GetInt("REALTIME_HANDSHAKE_TIMEOUT")) * time.Second,
			SendBuffer:       viper.GetInt("REALTIME_SEND_BUFFER"),
			MaxSendFailures:  viper.GetInt("REALTIME_MAX_SEND_FAILURES"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	// Basic validation
	if cfg.JWT.AccessSecret == "" || cfg.JWT.RefreshSecret == "" {
		log.Println("WARNING: ACCESS_TOKEN_SECRET / REFRESH_TOKEN_SECRET not set; set secure values in production")
	}

	return cfg, nil
}
