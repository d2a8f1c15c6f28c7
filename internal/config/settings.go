// Package config loads process settings from the environment (and an optional
// .env file) and the ingestion configuration from AWS Secrets Manager.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config sources for the ingestion configuration.
const (
	SourceSecretsManager = "secretsmanager"
	SourceEnv            = "env"
)

// Metrics backends for pipeline counters.
const (
	MetricsPrometheus = "prometheus"
	MetricsExpvar     = "expvar"
)

// Settings are the process-level knobs read before anything else.
type Settings struct {
	SecretName   string
	SecretRegion string
	Env          string
	Source       string

	StorageDriver string
	SQLitePath    string

	BlobDriver   string
	BlobFSRoot   string
	S3Endpoint   string
	S3PathStyle  bool
	LogLevel     string
	LogFormat    string
	MetricsAddr  string

	MetricsBackend string // prometheus|expvar
	EnvIngestion   IngestionConfig
}

// Load reads settings from defaults, then envFile (dotenv format, skipped
// when absent), then the process environment. Later sources win.
func Load(envFile string) (Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if envFile != "" {
		_, err := os.Stat(envFile)
		switch {
		case err == nil:
			v.SetConfigFile(envFile)
			v.SetConfigType("dotenv")
			if err := v.ReadInConfig(); err != nil {
				return Settings{}, fmt.Errorf("read env file %s: %w", envFile, err)
			}
		case !errors.Is(err, fs.ErrNotExist):
			return Settings{}, fmt.Errorf("stat env file %s: %w", envFile, err)
		}
	}

	s := Settings{
		SecretName:    v.GetString("cardio_ingestion_secret_name"),
		SecretRegion:  v.GetString("aws_secret_region"),
		Env:           v.GetString("ingestion_env"),
		Source:        strings.ToLower(v.GetString("cardio_config_source")),
		StorageDriver: strings.ToLower(v.GetString("cardio_storage_driver")),
		SQLitePath:    v.GetString("cardio_sqlite_path"),
		BlobDriver:    strings.ToLower(v.GetString("cardio_blob_driver")),
		BlobFSRoot:    v.GetString("cardio_blob_fs_root"),
		S3Endpoint:    v.GetString("cardio_s3_endpoint"),
		S3PathStyle:   v.GetBool("cardio_s3_path_style"),
		LogLevel:      v.GetString("log_level"),
		LogFormat:     v.GetString("log_format"),
		MetricsAddr:   v.GetString("cardio_metrics_addr"),

		MetricsBackend: strings.ToLower(v.GetString("cardio_metrics_backend")),
	}
	if s.Source != SourceSecretsManager && s.Source != SourceEnv {
		return Settings{}, fmt.Errorf("unknown config source %q", s.Source)
	}
	if s.MetricsBackend != MetricsPrometheus && s.MetricsBackend != MetricsExpvar {
		return Settings{}, fmt.Errorf("unknown metrics backend %q", s.MetricsBackend)
	}

	ing, err := ingestionFromMap(map[string]any{
		"RDS_HOST":        v.Get("rds_host"),
		"RDS_PORT":        v.Get("rds_port"),
		"RDS_DB":          v.Get("rds_db"),
		"RDS_USER":        v.Get("rds_user"),
		"RDS_PASSWORD":    v.Get("rds_password"),
		"REGION":          v.Get("region"),
		"S3_INPUT_BUCKET": v.Get("s3_input_bucket"),
		"S3_INPUT_PREFIX": v.Get("s3_input_prefix"),
	}, s.Env)
	if err != nil {
		return Settings{}, err
	}
	s.EnvIngestion = ing
	return s, nil
}
