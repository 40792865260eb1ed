package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/arnavshah/assignment-engine-go/pkg/scheduler"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env  string
	Port string

	Database DatabaseConfig
	JWT      JWTConfig
	Admin    AdminConfig
	Log      LogConfig
	Engine   EngineConfig

	// APIMasterSecret signs congregation API keys.
	APIMasterSecret  string
	DefaultRateLimit int
}

type DatabaseConfig struct {
	// URL selects postgres when set; otherwise sqlite at Path is used.
	URL  string
	Path string
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type AdminConfig struct {
	Username string
	Password string
}

type LogConfig struct {
	Level  string
	Format string
}

// EngineConfig holds the scoring weights handed to the scheduler.
type EngineConfig struct {
	WeightFrequency float64
	WeightRecency   float64
	MaxBonusDays    int
	JitterRange     float64
	HistoryWeeks    int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetString("PORT")

	cfg.Database = DatabaseConfig{
		URL:  v.GetString("DATABASE_URL"),
		Path: v.GetString("DATA_PATH"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.Admin = AdminConfig{
		Username: v.GetString("ADMIN_USERNAME"),
		Password: v.GetString("ADMIN_PASSWORD"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Engine = EngineConfig{
		WeightFrequency: v.GetFloat64("ENGINE_WEIGHT_FREQUENCY"),
		WeightRecency:   v.GetFloat64("ENGINE_WEIGHT_RECENCY"),
		MaxBonusDays:    v.GetInt("ENGINE_MAX_BONUS_DAYS"),
		JitterRange:     v.GetFloat64("ENGINE_JITTER_RANGE"),
		HistoryWeeks:    v.GetInt("ENGINE_HISTORY_WEEKS"),
	}

	cfg.APIMasterSecret = v.GetString("API_MASTER_SECRET")
	cfg.DefaultRateLimit = v.GetInt("DEFAULT_RATE_LIMIT")
	if cfg.DefaultRateLimit <= 0 {
		cfg.DefaultRateLimit = 10000
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", "8000")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATA_PATH", "assignments.db")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("API_MASTER_SECRET", "")

	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD", "admin123")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "")

	d := scheduler.DefaultConfig()
	v.SetDefault("ENGINE_WEIGHT_FREQUENCY", d.WeightFrequency)
	v.SetDefault("ENGINE_WEIGHT_RECENCY", d.WeightRecency)
	v.SetDefault("ENGINE_MAX_BONUS_DAYS", d.MaxBonusDays)
	v.SetDefault("ENGINE_JITTER_RANGE", d.JitterRange)
	v.SetDefault("ENGINE_HISTORY_WEEKS", d.HistoryWeeks)

	v.SetDefault("DEFAULT_RATE_LIMIT", 10000)
}

// Scheduler converts the engine settings into scheduler weights.
func (e EngineConfig) Scheduler() scheduler.Config {
	cfg := scheduler.DefaultConfig()
	cfg.WeightFrequency = e.WeightFrequency
	cfg.WeightRecency = e.WeightRecency
	if e.MaxBonusDays > 0 {
		cfg.MaxBonusDays = e.MaxBonusDays
	}
	if e.JitterRange >= 0 {
		cfg.JitterRange = e.JitterRange
	}
	if e.HistoryWeeks > 0 {
		cfg.HistoryWeeks = e.HistoryWeeks
	}
	return cfg
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
