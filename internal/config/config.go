package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	neturl "net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 5000
	defaultEnv        = "development"

	defaultMongoHost = "127.0.0.1"
	defaultMongoPort = 27017
	defaultMongoName = "shopStatusDB"

	defaultRedisHost = "localhost"
	defaultRedisPort = 6379
	defaultRedisDB   = 0

	defaultSweepInterval  = time.Minute
	defaultSweepStaleness = time.Hour

	defaultOverpassURL       = "https://overpass-api.de/api/interpreter"
	defaultProviderRadius    = 2000
	defaultProviderCacheTTL  = time.Minute
	defaultProviderPageLimit = 20
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                  `yaml:"port"`
	Env            string               `yaml:"env"` // "development" | "production"
	Mongo          MongoRuntimeConfig   `yaml:"mongo"`
	Redis          RedisRuntimeConfig   `yaml:"redis"`
	AllowedOrigins []string             `yaml:"allowed_origins"`
	Timezone       string               `yaml:"timezone"`
	Sweep          SweepConfig          `yaml:"sweep"`
	Providers      ProvidersConfig      `yaml:"providers"`
	Backup         BackupConfig         `yaml:"backup"`
	Paths          RuntimePathsConfig   `yaml:"paths"`
}

type MongoRuntimeConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type RedisRuntimeConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

// SweepConfig controls the stale-status expiry job.
type SweepConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Staleness time.Duration `yaml:"staleness"`
}

// ProvidersConfig configures the external place-data adapters.
type ProvidersConfig struct {
	GoogleMapsAPIKey string        `yaml:"google_maps_api_key"`
	OverpassURL      string        `yaml:"overpass_url"`
	RadiusMeters     int           `yaml:"radius_meters"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
}

// BackupConfig controls the collection export job.
type BackupConfig struct {
	Enable bool           `yaml:"enable"`
	S3     S3BackupConfig `yaml:"s3"`
}

type S3BackupConfig struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Prefix          string `yaml:"prefix"`
}

// Enabled reports whether the S3 target is fully configured.
func (s S3BackupConfig) Enabled() bool {
	return s.Bucket != "" && s.AccessKeyID != "" && s.SecretAccessKey != ""
}

type RuntimePathsConfig struct {
	Logs    string `yaml:"logs"`
	Backups string `yaml:"backups"`
}

// rawAppConfig accepts both the canonical keys and the flat legacy aliases
// older deployments set through dotenv.
type rawAppConfig struct {
	Port               int                `yaml:"port"`
	Env                string             `yaml:"env"`
	NodeEnv            string             `yaml:"node_env"`
	Mongo              rawMongoConfig     `yaml:"mongo"`
	Database           rawMongoConfig     `yaml:"database"`
	MongoURL           string             `yaml:"mongo_url"`
	MongoURI           string             `yaml:"mongodb_uri"`
	DBName             string             `yaml:"db_name"`
	Redis              rawRedisConfig     `yaml:"redis"`
	RedisURL           string             `yaml:"redis_url"`
	RedisHost          string             `yaml:"redis_host"`
	RedisPort          int                `yaml:"redis_port"`
	RedisPassword      string             `yaml:"redis_password"`
	RedisDB            *int               `yaml:"redis_db"`
	AllowedOrigins     []string           `yaml:"allowed_origins"`
	CORSAllowedOrigins []string           `yaml:"cors_allowed_origins"`
	Timezone           string             `yaml:"timezone"`
	TZ                 string             `yaml:"tz"`
	Sweep              rawSweepConfig     `yaml:"sweep"`
	Providers          rawProvidersConfig `yaml:"providers"`
	GoogleMapsAPIKey   string             `yaml:"google_maps_api_key"`
	Backup             BackupConfig       `yaml:"backup"`
	Paths              RuntimePathsConfig `yaml:"paths"`
	LogDir             string             `yaml:"log_dir"`
	BackupDir          string             `yaml:"backup_dir"`
}

type rawMongoConfig struct {
	URL      string `yaml:"url"`
	URI      string `yaml:"uri"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	DBName   string `yaml:"db_name"`
}

type rawRedisConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       *int   `yaml:"db"`
	TLS      *bool  `yaml:"tls"`
}

type rawSweepConfig struct {
	Interval  string `yaml:"interval"`
	Staleness string `yaml:"staleness"`
}

type rawProvidersConfig struct {
	GoogleMapsAPIKey string `yaml:"google_maps_api_key"`
	GoogleAPIKey     string `yaml:"google_api_key"`
	OverpassURL      string `yaml:"overpass_url"`
	RadiusMeters     int    `yaml:"radius_meters"`
	CacheTTL         string `yaml:"cache_ttl"`
}

// Load reads and normalizes the YAML config at configPath. A missing file is
// an error; an empty path falls back to DefaultConfigPath.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	return Parse(content, path)
}

// Parse decodes raw YAML bytes into a normalized AppConfig.
func Parse(content []byte, path string) (*AppConfig, error) {
	cfg := defaultAppConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	raw := rawAppConfig{}
	if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	if err := applyRawAppConfig(&cfg, raw); err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d in %q, expected 1-65535", cfg.Port, path)
	}
	if cfg.Sweep.Interval <= 0 {
		return nil, fmt.Errorf("invalid sweep.interval in %q, expected > 0", path)
	}
	if cfg.Sweep.Staleness <= 0 {
		return nil, fmt.Errorf("invalid sweep.staleness in %q, expected > 0", path)
	}

	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Mongo: MongoRuntimeConfig{
			Host: defaultMongoHost,
			Port: defaultMongoPort,
			Name: defaultMongoName,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Sweep: SweepConfig{
			Interval:  defaultSweepInterval,
			Staleness: defaultSweepStaleness,
		},
		Providers: ProvidersConfig{
			OverpassURL:  defaultOverpassURL,
			RadiusMeters: defaultProviderRadius,
			CacheTTL:     defaultProviderCacheTTL,
		},
	}
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) error {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.NodeEnv); v != "" {
		cfg.Env = v
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))

	cfg.Mongo = applyRawMongoConfig(cfg.Mongo, raw)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)

	switch {
	case raw.AllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	case raw.CORSAllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.CORSAllowedOrigins)
	}

	if v := strings.TrimSpace(raw.Timezone); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(raw.TZ); v != "" {
		cfg.Timezone = v
	}

	if v := strings.TrimSpace(raw.Sweep.Interval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("sweep.interval: %w", err)
		}
		cfg.Sweep.Interval = d
	}
	if v := strings.TrimSpace(raw.Sweep.Staleness); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("sweep.staleness: %w", err)
		}
		cfg.Sweep.Staleness = d
	}

	if v := strings.TrimSpace(raw.Providers.GoogleMapsAPIKey); v != "" {
		cfg.Providers.GoogleMapsAPIKey = v
	}
	if v := strings.TrimSpace(raw.Providers.GoogleAPIKey); v != "" {
		cfg.Providers.GoogleMapsAPIKey = v
	}
	if v := strings.TrimSpace(raw.GoogleMapsAPIKey); v != "" {
		cfg.Providers.GoogleMapsAPIKey = v
	}
	if v := strings.TrimSpace(raw.Providers.OverpassURL); v != "" {
		cfg.Providers.OverpassURL = v
	}
	if raw.Providers.RadiusMeters > 0 {
		cfg.Providers.RadiusMeters = raw.Providers.RadiusMeters
	}
	if v := strings.TrimSpace(raw.Providers.CacheTTL); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("providers.cache_ttl: %w", err)
		}
		cfg.Providers.CacheTTL = d
	}

	cfg.Backup = raw.Backup

	if v := strings.TrimSpace(raw.Paths.Logs); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.Paths.Backups); v != "" {
		cfg.Paths.Backups = v
	}
	if v := strings.TrimSpace(raw.BackupDir); v != "" {
		cfg.Paths.Backups = v
	}

	return nil
}

func applyRawMongoConfig(current MongoRuntimeConfig, raw rawAppConfig) MongoRuntimeConfig {
	cfg := current
	for _, section := range []rawMongoConfig{raw.Database, raw.Mongo} {
		if v := strings.TrimSpace(section.URL); v != "" {
			cfg.URL = v
		}
		if v := strings.TrimSpace(section.URI); v != "" {
			cfg.URL = v
		}
		if v := strings.TrimSpace(section.Host); v != "" {
			cfg.Host = v
		}
		if section.Port != 0 {
			cfg.Port = section.Port
		}
		if v := strings.TrimSpace(section.User); v != "" {
			cfg.Username = v
		}
		if v := strings.TrimSpace(section.Username); v != "" {
			cfg.Username = v
		}
		if v := strings.TrimSpace(section.Password); v != "" {
			cfg.Password = v
		}
		if v := strings.TrimSpace(section.Name); v != "" {
			cfg.Name = v
		}
		if v := strings.TrimSpace(section.DBName); v != "" {
			cfg.Name = v
		}
	}
	if v := strings.TrimSpace(raw.MongoURL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.MongoURI); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.DBName); v != "" {
		cfg.Name = v
	}
	return cfg
}

func applyRawRedisConfig(current RedisRuntimeConfig, raw rawAppConfig) RedisRuntimeConfig {
	cfg := current
	if v := strings.TrimSpace(raw.Redis.URL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.RedisURL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.Redis.Host); v != "" {
		cfg.Host = v
	}
	if v := strings.TrimSpace(raw.RedisHost); v != "" {
		cfg.Host = v
	}
	if raw.Redis.Port != 0 {
		cfg.Port = raw.Redis.Port
	}
	if raw.RedisPort != 0 {
		cfg.Port = raw.RedisPort
	}
	if v := strings.TrimSpace(raw.Redis.Username); v != "" {
		cfg.Username = v
	}
	if v := strings.TrimSpace(raw.Redis.Password); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(raw.RedisPassword); v != "" {
		cfg.Password = v
	}
	if raw.Redis.DB != nil {
		cfg.DB = *raw.Redis.DB
	}
	if raw.RedisDB != nil {
		cfg.DB = *raw.RedisDB
	}
	if raw.Redis.TLS != nil {
		cfg.TLS = *raw.Redis.TLS
	}
	return cfg
}

// URI assembles the MongoDB connection string, preferring an explicit URL.
func (c MongoRuntimeConfig) URI() string {
	if v := strings.TrimSpace(c.URL); v != "" {
		return v
	}

	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = defaultMongoHost
	}
	port := c.Port
	if port == 0 {
		port = defaultMongoPort
	}

	u := &neturl.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
	}
	username := strings.TrimSpace(c.Username)
	password := strings.TrimSpace(c.Password)
	if username != "" {
		if password != "" {
			u.User = neturl.UserPassword(username, password)
		} else {
			u.User = neturl.User(username)
		}
	}
	return u.String()
}

// URLValue assembles the Redis connection URL, preferring an explicit URL.
func (c RedisRuntimeConfig) URLValue() string {
	if trimmed := strings.TrimSpace(c.URL); trimmed != "" {
		if strings.HasPrefix(trimmed, "redis://") || strings.HasPrefix(trimmed, "rediss://") {
			return trimmed
		}
		return "redis://" + trimmed
	}

	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = defaultRedisHost
	}
	port := c.Port
	if port == 0 {
		port = defaultRedisPort
	}
	db := c.DB
	if db < 0 {
		db = defaultRedisDB
	}

	scheme := "redis"
	if c.TLS {
		scheme = "rediss"
	}

	u := &neturl.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + strconv.Itoa(db),
	}
	username := strings.TrimSpace(c.Username)
	password := strings.TrimSpace(c.Password)
	if username != "" {
		if password != "" {
			u.User = neturl.UserPassword(username, password)
		} else {
			u.User = neturl.User(username)
		}
	} else if password != "" {
		u.User = neturl.UserPassword("", password)
	}
	return u.String()
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

// LogDir resolves the logs directory, defaulting next to the binary.
func (c *AppConfig) LogDir() string {
	if c != nil && strings.TrimSpace(c.Paths.Logs) != "" {
		return strings.TrimSpace(c.Paths.Logs)
	}
	return "logs"
}

// BackupDir resolves the backups directory.
func (c *AppConfig) BackupDir() string {
	if c != nil && strings.TrimSpace(c.Paths.Backups) != "" {
		return strings.TrimSpace(c.Paths.Backups)
	}
	return "backups"
}
