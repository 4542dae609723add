package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "lingkar"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvDBDSN  = "LINGKAR_DB_DSN"
	EnvDBHost = "LINGKAR_DB_HOST"
	EnvDBUser = "LINGKAR_DB_USER"
	EnvDBName = "LINGKAR_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Scorer       ScorerConfig
	Extraction   ExtractionConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Worker       WorkerConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LINGKAR_APP_ENV" required:"true"`
	Port         string `envconfig:"LINGKAR_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"LINGKAR_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LINGKAR_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LINGKAR_DB_DSN"`
	Driver string `envconfig:"LINGKAR_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LINGKAR_DB_HOST"`
	LegacyPort     int    `envconfig:"LINGKAR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LINGKAR_DB_USER"`
	LegacyPassword string `envconfig:"LINGKAR_DB_PASSWORD"`
	LegacyName     string `envconfig:"LINGKAR_DB_NAME"`
	LegacySSLMode  string `envconfig:"LINGKAR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LINGKAR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LINGKAR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LINGKAR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LINGKAR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LINGKAR_REDIS_URL"`
	Address      string        `envconfig:"LINGKAR_REDIS_ADDR"`
	Password     string        `envconfig:"LINGKAR_REDIS_PASSWORD"`
	DB           int           `envconfig:"LINGKAR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LINGKAR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LINGKAR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LINGKAR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LINGKAR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LINGKAR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// ScorerConfig points at the external default-risk prediction endpoint.
type ScorerConfig struct {
	URL     string        `envconfig:"LINGKAR_SCORER_URL"`
	Timeout time.Duration `envconfig:"LINGKAR_SCORER_TIMEOUT" default:"30s"`
}

// ExtractionConfig controls the Gemini-backed transaction extractor.
type ExtractionConfig struct {
	Model       string `envconfig:"LINGKAR_EXTRACTION_MODEL" default:"gemini-2.0-flash"`
	APIVersion  string `envconfig:"LINGKAR_EXTRACTION_API_VERSION" default:"v1"`
	MaxUploadMB int    `envconfig:"LINGKAR_EXTRACTION_MAX_UPLOAD_MB" default:"10"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LINGKAR_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"LINGKAR_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LINGKAR_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ScoringTopic        string `envconfig:"LINGKAR_PUBSUB_SCORING_TOPIC" default:"lingkar-scoring-requests"`
	ScoringSubscription string `envconfig:"LINGKAR_PUBSUB_SCORING_SUBSCRIPTION"`
}

type BigQueryConfig struct {
	Dataset         string `envconfig:"LINGKAR_BIGQUERY_DATASET" default:"lingkar"`
	ScoreEventTable string `envconfig:"LINGKAR_BIGQUERY_SCORE_TABLE" default:"score_events"`
}

// WorkerConfig drives the weekly scoring sweep.
type WorkerConfig struct {
	SweepInterval time.Duration `envconfig:"LINGKAR_WORKER_SWEEP_INTERVAL" default:"168h"`
	LockKey       string        `envconfig:"LINGKAR_WORKER_LOCK_KEY" default:"lingkar:scoring:sweep"`
	LockTTL       time.Duration `envconfig:"LINGKAR_WORKER_LOCK_TTL" default:"2h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate    bool `envconfig:"LINGKAR_AUTO_MIGRATE" default:"false"`
	ExportScores   bool `envconfig:"LINGKAR_EXPORT_SCORES" default:"false"`
	EnableExtract  bool `envconfig:"LINGKAR_ENABLE_EXTRACTION" default:"true"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
