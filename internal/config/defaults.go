package config

import "github.com/spf13/viper"

func setDefaults(v *viper.Viper) {
	v.SetDefault("cardio_ingestion_secret_name", "cardio/ingestion/config")
	v.SetDefault("aws_secret_region", "us-east-1")
	v.SetDefault("ingestion_env", "dev")
	v.SetDefault("cardio_config_source", SourceSecretsManager)

	v.SetDefault("cardio_storage_driver", "postgres")
	v.SetDefault("cardio_sqlite_path", "cardioingest.db")

	v.SetDefault("cardio_blob_driver", "s3")
	v.SetDefault("cardio_blob_fs_root", "./blobdata")
	v.SetDefault("cardio_s3_endpoint", "")
	v.SetDefault("cardio_s3_path_style", false)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("cardio_metrics_addr", "")
	v.SetDefault("cardio_metrics_backend", MetricsPrometheus)

	// Ingestion keys, used when the config source is env.
	v.SetDefault("rds_host", "")
	v.SetDefault("rds_port", 5432)
	v.SetDefault("rds_db", "")
	v.SetDefault("rds_user", "")
	v.SetDefault("rds_password", "")
	v.SetDefault("region", "us-east-1")
	v.SetDefault("s3_input_bucket", "")
	v.SetDefault("s3_input_prefix", "")
}
