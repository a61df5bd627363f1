package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreMemory    = "memory"
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Firebase   FirebaseConfig
	NATS       NATSConfig
	Store      StoreConfig
	Monitor    MonitorConfig
	Models     ModelsConfig
	Alerts     AlertsConfig
	RateLimit  RateLimitConfig
	Patterns   PatternsConfig
	Escalation EscalationConfig
	Tracing    TracingConfig
	Sentry     SentryConfig
	Secrets    SecretsConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// FirebaseConfig holds Firebase configuration
type FirebaseConfig struct {
	ProjectID       string
	CredentialsPath string
	AlertsPath      string
	PatternsPath    string
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL     string
	Enabled bool
}

// StoreConfig selects the alert/pattern store adapter
type StoreConfig struct {
	Driver string
}

// MonitorConfig holds the background threat monitor settings
type MonitorConfig struct {
	Enabled   bool
	Interval  time.Duration
	Latitude  float64
	Longitude float64
	RadiusKm  float64
}

// ModelsConfig locates the classifiers. An empty path means the model is absent.
// Paths are local files or s3://bucket/key locations.
type ModelsConfig struct {
	ThreatPath   string
	ScamPath     string
	BehaviorPath string
	RemoteURL    string
	Timeout      time.Duration
	Storage      ObjectStorageConfig
}

// ObjectStorageConfig holds S3 settings for model artifacts
type ObjectStorageConfig struct {
	Region    string
	Endpoint  string // For S3-compatible storage
	AccessKey string
	SecretKey string
}

// AlertsConfig holds community alert settings
type AlertsConfig struct {
	FingerprintSalt string
}

// RateLimitConfig throttles submissions per reporter fingerprint
type RateLimitConfig struct {
	Enabled       bool
	WindowSeconds int
	Limit         int
	RedisPrefix   string
}

// PatternsConfig holds scam pattern aggregation settings
type PatternsConfig struct {
	TrendEmission string // "crossing" or "every"
}

// EscalationConfig configures where high-risk predictions are published
type EscalationConfig struct {
	RedisChannel string
	NATSSubject  string
}

// TracingConfig holds OpenTelemetry exporter configuration
type TracingConfig struct {
	Endpoint string
	Insecure bool
}

// SentryConfig holds Sentry configuration
type SentryConfig struct {
	DSN string
}

// SecretsConfig selects a secret backend and the references resolved
// through it at startup. References look like [provider://][mount::]path[@version][#key].
type SecretsConfig struct {
	Provider           string // vault, aws, gcp, files or empty
	CacheTTL           time.Duration
	VaultAddress       string
	VaultToken         string
	VaultNamespace     string
	VaultMount         string
	AWSRegion          string
	AWSEndpoint        string
	GCPProjectID       string
	GCPCredentialsFile string
	FilesPath          string
	Refs               SecretRefs
}

// SecretRefs names the settings that may be pulled from the secret backend
type SecretRefs struct {
	DatabasePassword      string
	RedisPassword         string
	FingerprintSalt       string
	SentryDSN             string
	ModelStorageSecretKey string
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "threatwatch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},
		Firebase: FirebaseConfig{
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			AlertsPath:      getEnv("FIREBASE_ALERTS_COLLECTION", "safety_alerts"),
			PatternsPath:    getEnv("FIREBASE_PATTERNS_COLLECTION", "scam_patterns"),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Enabled: getEnvAsBool("NATS_ENABLED", false),
		},
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", StoreMemory),
		},
		Monitor: MonitorConfig{
			Enabled:   getEnvAsBool("MONITOR_ENABLED", true),
			Interval:  getEnvAsDuration("MONITOR_INTERVAL", 300*time.Second),
			Latitude:  getEnvAsFloat("MONITOR_LATITUDE", -1.2921),
			Longitude: getEnvAsFloat("MONITOR_LONGITUDE", 36.8219),
			RadiusKm:  getEnvAsFloat("MONITOR_RADIUS_KM", 5),
		},
		Models: ModelsConfig{
			ThreatPath:   getEnv("MODEL_THREAT_PATH", ""),
			ScamPath:     getEnv("MODEL_SCAM_PATH", ""),
			BehaviorPath: getEnv("MODEL_BEHAVIOR_PATH", ""),
			RemoteURL:    getEnv("MODEL_REMOTE_URL", ""),
			Timeout:      getEnvAsDuration("MODEL_TIMEOUT", 5*time.Second),
			Storage: ObjectStorageConfig{
				Region:    getEnv("MODEL_S3_REGION", "us-east-1"),
				Endpoint:  getEnv("MODEL_S3_ENDPOINT", ""),
				AccessKey: getEnv("MODEL_S3_ACCESS_KEY", ""),
				SecretKey: getEnv("MODEL_S3_SECRET_KEY", ""),
			},
		},
		Alerts: AlertsConfig{
			FingerprintSalt: getEnv("FINGERPRINT_SALT", "threatwatch"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvAsBool("RATE_LIMIT_ENABLED", false),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 3600),
			Limit:         getEnvAsInt("RATE_LIMIT_SUBMISSIONS", 20),
			RedisPrefix:   getEnv("RATE_LIMIT_REDIS_PREFIX", "rl"),
		},
		Patterns: PatternsConfig{
			TrendEmission: getEnv("TREND_EMISSION", "crossing"),
		},
		Escalation: EscalationConfig{
			RedisChannel: getEnv("ESCALATION_REDIS_CHANNEL", "threatwatch:escalations"),
			NATSSubject:  getEnv("ESCALATION_NATS_SUBJECT", "threatwatch.escalations"),
		},
		Tracing: TracingConfig{
			Endpoint: getEnv("OTEL_ENDPOINT", ""),
			Insecure: getEnvAsBool("OTEL_INSECURE", true),
		},
		Sentry: SentryConfig{
			DSN: getEnv("SENTRY_DSN", ""),
		},
		Secrets: SecretsConfig{
			Provider:           getEnv("SECRETS_PROVIDER", ""),
			CacheTTL:           getEnvAsDuration("SECRETS_CACHE_TTL", 5*time.Minute),
			VaultAddress:       getEnv("VAULT_ADDR", ""),
			VaultToken:         getEnv("VAULT_TOKEN", ""),
			VaultNamespace:     getEnv("VAULT_NAMESPACE", ""),
			VaultMount:         getEnv("VAULT_MOUNT", "secret"),
			AWSRegion:          getEnv("SECRETS_AWS_REGION", ""),
			AWSEndpoint:        getEnv("SECRETS_AWS_ENDPOINT", ""),
			GCPProjectID:       getEnv("SECRETS_GCP_PROJECT_ID", ""),
			GCPCredentialsFile: getEnv("SECRETS_GCP_CREDENTIALS_FILE", ""),
			FilesPath:          getEnv("SECRETS_FILES_PATH", "/var/run/secrets/threatwatch"),
			Refs: SecretRefs{
				DatabasePassword:      getEnv("DB_PASSWORD_SECRET", ""),
				RedisPassword:         getEnv("REDIS_PASSWORD_SECRET", ""),
				FingerprintSalt:       getEnv("FINGERPRINT_SALT_SECRET", ""),
				SentryDSN:             getEnv("SENTRY_DSN_SECRET", ""),
				ModelStorageSecretKey: getEnv("MODEL_S3_SECRET_KEY_SECRET", ""),
			},
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that would otherwise fail at first use
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory, StorePostgres:
	case StoreFirestore:
		if c.Firebase.ProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required for the firestore store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("MONITOR_INTERVAL must be positive")
	}

	if c.Patterns.TrendEmission != "crossing" && c.Patterns.TrendEmission != "every" {
		return fmt.Errorf("TREND_EMISSION must be 'crossing' or 'every'")
	}

	if c.RateLimit.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("RATE_LIMIT_ENABLED requires REDIS_ENABLED")
	}

	switch c.Secrets.Provider {
	case "", "vault", "aws", "gcp", "files":
	default:
		return fmt.Errorf("unknown SECRETS_PROVIDER %q", c.Secrets.Provider)
	}

	return nil
}

// Window returns the rate limit window as a duration
func (c *RateLimitConfig) Window() time.Duration {
	if c.WindowSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.WindowSeconds) * time.Second
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// MigrationURL returns the URL form used by golang-migrate's pgx driver
func (c *DatabaseConfig) MigrationURL() string {
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
