package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Gemini    GeminiConfig
	Suno      SunoConfig
	Download  DownloadConfig
	R2        R2Config
	Poll      PollConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type PostgresConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
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

type RateLimitConfig struct {
	LyricsPerMin    int
	SubmitPerHour   int
	DownloadPerHour int
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type SunoConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type DownloadConfig struct {
	Dir     string
	Timeout int // seconds
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type PollConfig struct {
	InitialDelay int // seconds before the first background poll
	MaxRetry     int // background poll attempts before giving up
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("POSTGRES_PASSWORD")
	readSecret("REDIS_PASSWORD")
	readSecret("GEMINI_API_KEY")
	readSecret("SUNO_API_KEY")
	readSecret("JWT_SECRET")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("postgres.host", "POSTGRES_HOST")
	_ = viper.BindEnv("postgres.port", "POSTGRES_PORT")
	_ = viper.BindEnv("postgres.user", "POSTGRES_USER")
	_ = viper.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	_ = viper.BindEnv("postgres.database", "POSTGRES_DB")
	_ = viper.BindEnv("postgres.ssl_mode", "POSTGRES_SSL_MODE")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	_ = viper.BindEnv("gemini.model", "GEMINI_MODEL")
	_ = viper.BindEnv("suno.api_key", "SUNO_API_KEY")
	_ = viper.BindEnv("suno.base_url", "SUNO_BASE_URL")
	_ = viper.BindEnv("suno.model", "SUNO_MODEL")
	_ = viper.BindEnv("download.dir", "DOWNLOAD_DIR")
	_ = viper.BindEnv("download.timeout", "DOWNLOAD_TIMEOUT")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("poll.initial_delay", "POLL_INITIAL_DELAY")
	_ = viper.BindEnv("poll.max_retry", "POLL_MAX_RETRY")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", 5432)
	viper.SetDefault("postgres.user", "songforge")
	viper.SetDefault("postgres.password", "")
	viper.SetDefault("postgres.database", "songforge")
	viper.SetDefault("postgres.ssl_mode", "disable")
	viper.SetDefault("postgres.max_open_conns", 10)
	viper.SetDefault("postgres.max_idle_conns", 5)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.lyrics_per_min", 30)
	viper.SetDefault("ratelimit.submit_per_hour", 10)
	viper.SetDefault("ratelimit.download_per_hour", 30)

	// Gemini defaults
	viper.SetDefault("gemini.model", "gemini-2.5-flash")

	// Suno defaults
	viper.SetDefault("suno.base_url", "https://api.sunoapi.org")
	viper.SetDefault("suno.model", "v4")

	// Download defaults
	viper.SetDefault("download.dir", "downloads")
	viper.SetDefault("download.timeout", 120)

	// Poll defaults
	viper.SetDefault("poll.initial_delay", 15)
	viper.SetDefault("poll.max_retry", 25)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Postgres: PostgresConfig{
			Host:         viper.GetString("postgres.host"),
			Port:         viper.GetInt("postgres.port"),
			User:         viper.GetString("postgres.user"),
			Password:     viper.GetString("postgres.password"),
			Database:     viper.GetString("postgres.database"),
			SSLMode:      viper.GetString("postgres.ssl_mode"),
			MaxOpenConns: viper.GetInt("postgres.max_open_conns"),
			MaxIdleConns: viper.GetInt("postgres.max_idle_conns"),
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
		RateLimit: RateLimitConfig{
			LyricsPerMin:    viper.GetInt("ratelimit.lyrics_per_min"),
			SubmitPerHour:   viper.GetInt("ratelimit.submit_per_hour"),
			DownloadPerHour: viper.GetInt("ratelimit.download_per_hour"),
		},
		Gemini: GeminiConfig{
			APIKey: viper.GetString("gemini.api_key"),
			Model:  viper.GetString("gemini.model"),
		},
		Suno: SunoConfig{
			APIKey:  viper.GetString("suno.api_key"),
			BaseURL: viper.GetString("suno.base_url"),
			Model:   viper.GetString("suno.model"),
		},
		Download: DownloadConfig{
			Dir:     viper.GetString("download.dir"),
			Timeout: viper.GetInt("download.timeout"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Poll: PollConfig{
			InitialDelay: viper.GetInt("poll.initial_delay"),
			MaxRetry:     viper.GetInt("poll.max_retry"),
		},
	}

	return cfg, nil
}
