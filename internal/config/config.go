package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvLocal      = "local"
	EnvProduction = "production"
)

const defaultConfigPath = "config/config.yaml"

type Config struct {
	Env        string     `yaml:"env" env:"APP_ENV" env-default:"local" validate:"oneof=local production"`
	Server     Server     `yaml:"server"`
	Processing Processing `yaml:"processing"`
	Storage    Storage    `yaml:"storage"`
	Upload     Upload     `yaml:"upload"`
}

type Server struct {
	Addr            string        `yaml:"addr" env:"SERVER_ADDR" env-default:"3000" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"0s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Processing points at the external service. Timeout 0 waits for the
// transport's own limits.
type Processing struct {
	LocalURL        string        `yaml:"local_url" env:"PROCESSING_LOCAL_URL" env-default:"http://localhost:8000/process" validate:"required,url"`
	ProductionURL   string        `yaml:"production_url" env:"PROCESSING_PRODUCTION_URL" env-default:"https://huggingface.co/spaces/demonarch/ff16c880f29eeba3615f1e874f52996a-be/process" validate:"required,url"`
	Timeout         time.Duration `yaml:"timeout" env:"PROCESSING_TIMEOUT" env-default:"0s"`
	MaxResponseSize int64         `yaml:"max_response_size" env:"PROCESSING_MAX_RESPONSE_SIZE" env-default:"67108864" validate:"gt=0"`
}

type Storage struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory" validate:"oneof=memory minio"`
	MinIO  MinIO  `yaml:"minio"`
}

type MinIO struct {
	Endpoint  string `yaml:"endpoint" env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"MINIO_BUCKET" env-default:"processed-images"`
	UseSSL    bool   `yaml:"use_ssl" env:"MINIO_USE_SSL" env-default:"false"`
}

type Upload struct {
	MaxSize int64 `yaml:"max_size" env:"UPLOAD_MAX_SIZE" env-default:"33554432" validate:"gt=0"`
}

// MustLoad reads CONFIG_PATH (or config/config.yaml) when present and lets
// environment variables override it.
func MustLoad() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}
	return Load(path)
}

func Load(path string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read env config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Storage.Driver == "minio" {
		if c.Storage.MinIO.AccessKey == "" || c.Storage.MinIO.SecretKey == "" {
			return errors.New("invalid config: minio storage requires access_key and secret_key")
		}
	}

	return nil
}

// ProcessingEndpoint resolves the endpoint for the configured environment.
func (c *Config) ProcessingEndpoint() string {
	if c.Env == EnvProduction {
		return c.Processing.ProductionURL
	}
	return c.Processing.LocalURL
}
