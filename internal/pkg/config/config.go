package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	PDOK      PDOKConfig      `mapstructure:"pdok"`
	Source    SourceConfig    `mapstructure:"source"`
	Query     QueryConfig     `mapstructure:"query"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Import    ImportConfig    `mapstructure:"import"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	// URL, when set, wins over the individual fields (DATABASE_URL).
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
	// Enabled=false runs the API on PDOK and sample data only.
	Enabled bool `mapstructure:"enabled"`
}

func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type PDOKConfig struct {
	URL      string `mapstructure:"url"`
	TypeName string `mapstructure:"type_name"`
	Count    int    `mapstructure:"count"`
	Timeout  int    `mapstructure:"timeout"` // seconds
}

func (p PDOKConfig) TimeoutDuration() time.Duration {
	return time.Duration(p.Timeout) * time.Second
}

type SourceConfig struct {
	Mode string `mapstructure:"mode"` // auto | database | pdok
}

type QueryConfig struct {
	DefaultMunicipality string  `mapstructure:"default_municipality"`
	DefaultMinArea      float64 `mapstructure:"default_min_area"`
	Limit               int     `mapstructure:"limit"`
	CacheTTL            int     `mapstructure:"cache_ttl"` // seconds
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type ImportConfig struct {
	MinArea        float64  `mapstructure:"min_area"`
	Municipalities []string `mapstructure:"municipalities"`
	SeedSamples    bool     `mapstructure:"seed_samples"`
	// Cron schedules the import workflow; empty disables scheduling.
	Cron string `mapstructure:"cron"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Enabled      bool   `mapstructure:"enabled"`
}

// Load reads configuration from .env, an optional config file and environment variables.
func Load(service string) (*Config, error) {
	_ = godotenv.Load() // OK if missing

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 70)
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "bag")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "bag_vastgoed")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.enabled", true)
	v.SetDefault("pdok.url", "https://service.pdok.nl/lv/bag/wfs/v2_0")
	v.SetDefault("pdok.type_name", "bag:verblijfsobject")
	v.SetDefault("pdok.count", 10000)
	v.SetDefault("pdok.timeout", 60)
	v.SetDefault("source.mode", "auto")
	v.SetDefault("query.default_municipality", "Rotterdam")
	v.SetDefault("query.default_min_area", 1000)
	v.SetDefault("query.limit", 1000)
	v.SetDefault("query.cache_ttl", 300)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", true)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "bag-import")
	v.SetDefault("import.min_area", 1000)
	v.SetDefault("import.municipalities", []string{})
	v.SetDefault("import.seed_samples", false)
	v.SetDefault("import.cron", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.enabled", false)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: BAGFINDER_DATABASE_HOST → database.host
	v.SetEnvPrefix("BAGFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names kept for existing deployments.
	_ = v.BindEnv("database.url", "BAGFINDER_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("server.port", "BAGFINDER_SERVER_PORT", "PORT")
	_ = v.BindEnv("log.level", "BAGFINDER_LOG_LEVEL", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var sourceModes = []string{"auto", "database", "pdok"}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Enabled && c.Database.URL == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	}
	if c.PDOK.URL == "" {
		errs = append(errs, "pdok.url is required")
	}
	if c.PDOK.Timeout <= 0 {
		errs = append(errs, "pdok.timeout must be positive")
	}
	if !slices.Contains(sourceModes, c.Source.Mode) {
		errs = append(errs, fmt.Sprintf("source.mode must be one of %s, got %q", strings.Join(sourceModes, ", "), c.Source.Mode))
	}
	if c.Source.Mode == "database" && !c.Database.Enabled {
		errs = append(errs, "source.mode database requires database.enabled")
	}
	if c.Query.DefaultMinArea < 0 {
		errs = append(errs, "query.default_min_area must not be negative")
	}
	if c.Query.Limit <= 0 {
		errs = append(errs, "query.limit must be positive")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Import.MinArea < 0 {
		errs = append(errs, "import.min_area must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
