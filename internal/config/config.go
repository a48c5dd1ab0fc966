package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dropout_risk_backend/internal/ml/classifier"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Model     ModelConfig   `mapstructure:"model"`
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	Log       LogConfig       `mapstructure:"log"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"` // 强制执行数据库迁移
	MigrateOnly  bool `mapstructure:"-"` // 仅迁移模式（迁移后退出）
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

// StorageConfig selects where model artifacts are kept: local, minio or oss.
type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	ModelPrefix   string `mapstructure:"model_prefix"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioSecure   bool   `mapstructure:"minio_secure"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

// ModelDir is the local directory for model files.
func (s *StorageConfig) ModelDir() string {
	return filepath.Join(s.LocalPath, strings.Trim(s.ModelPrefix, "/"))
}

// ModelConfig drives training and the active predictor.
type ModelConfig struct {
	// ActiveName is the artifact name the predictor loads at startup.
	ActiveName string  `mapstructure:"active_name"`
	Version    string  `mapstructure:"version"`
	TestSize   float64 `mapstructure:"test_size"`
	// ValidationSize is the share of the training side early stopping
	// watches. 0 uses the test split.
	ValidationSize float64 `mapstructure:"validation_size"`
	KFolds         int     `mapstructure:"k_folds"`
	Seed           int64   `mapstructure:"seed"`
	// Cohort is exclude_self or include_self.
	Cohort          string                `mapstructure:"cohort"`
	MinLabeledRows  int                   `mapstructure:"min_labeled_rows"`
	Hyperparameters classifier.GBDTParams `mapstructure:"hyperparameters"`
	// ForestTrees caps the random forest size in model comparisons.
	ForestTrees int `mapstructure:"forest_trees"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
	ServiceName       string `mapstructure:"service_name"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	// BenchmarkTTL is how long cached course benchmarks stay valid.
	BenchmarkTTL time.Duration `mapstructure:"benchmark_ttl"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "data")
	v.SetDefault("storage.model_prefix", "models/")
	v.SetDefault("redis.benchmark_ttl", "1h")
	v.SetDefault("log.level", "")
	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("tracing.service_name", "dropout-risk-backend")
	v.SetDefault("rate_limit.max_requests", 6000)
	v.SetDefault("rate_limit.window_minutes", 1)

	hp := classifier.DefaultGBDTParams()
	v.SetDefault("model.active_name", "dropout_gbdt")
	v.SetDefault("model.version", "v1")
	v.SetDefault("model.test_size", 0.2)
	v.SetDefault("model.validation_size", 0.1)
	v.SetDefault("model.k_folds", 5)
	v.SetDefault("model.seed", 42)
	v.SetDefault("model.cohort", "exclude_self")
	v.SetDefault("model.min_labeled_rows", 20)
	v.SetDefault("model.forest_trees", 500)
	v.SetDefault("model.hyperparameters.iterations", hp.Iterations)
	v.SetDefault("model.hyperparameters.learning_rate", hp.LearningRate)
	v.SetDefault("model.hyperparameters.depth", hp.Depth)
	v.SetDefault("model.hyperparameters.l2_leaf_reg", hp.L2LeafReg)
	v.SetDefault("model.hyperparameters.early_stopping_rounds", hp.EarlyStoppingRounds)
	v.SetDefault("model.hyperparameters.min_data_in_leaf", hp.MinDataInLeaf)
	v.SetDefault("model.hyperparameters.subsample", hp.Subsample)
	v.SetDefault("model.hyperparameters.max_bins", hp.MaxBins)
	v.SetDefault("model.hyperparameters.seed", hp.Seed)
	v.SetDefault("model.hyperparameters.native_categorical", hp.NativeCategorical)
}

// LoadConfig reads <path>/config.yaml. Environment variables prefixed with
// DROPOUT override file values; secrets also have unprefixed names.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("DROPOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Model
	v.BindEnv("model.active_name", "MODEL_ACTIVE_NAME")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if err := cfg.Model.validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.ModelDir()); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.ModelDir(), 0755)
		}
	}

	return &cfg, nil
}

func (m *ModelConfig) validate() error {
	if m.TestSize <= 0 || m.TestSize >= 1 {
		return fmt.Errorf("model.test_size must be in (0, 1), got %v", m.TestSize)
	}
	if m.ValidationSize < 0 || m.ValidationSize >= 1 {
		return fmt.Errorf("model.validation_size must be in [0, 1), got %v", m.ValidationSize)
	}
	if m.KFolds < 2 {
		return fmt.Errorf("model.k_folds must be at least 2, got %d", m.KFolds)
	}
	if m.Cohort != "exclude_self" && m.Cohort != "include_self" {
		return fmt.Errorf("model.cohort must be exclude_self or include_self, got %q", m.Cohort)
	}
	if m.ActiveName == "" {
		return fmt.Errorf("model.active_name is required")
	}
	return nil
}
