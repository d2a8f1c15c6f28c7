package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/spf13/cast"
)

// IngestionConfig holds database and bucket coordinates for a deployment.
type IngestionConfig struct {
	RDSHost       string `json:"RDS_HOST"`
	RDSPort       int    `json:"RDS_PORT"`
	RDSDB         string `json:"RDS_DB"`
	RDSUser       string `json:"RDS_USER"`
	RDSPassword   string `json:"-"`
	Region        string `json:"REGION"`
	S3InputBucket string `json:"S3_INPUT_BUCKET"`
	S3InputPrefix string `json:"S3_INPUT_PREFIX"`
	RuntimeEnv    string `json:"RUNTIME_ENV"`
}

// PostgresDSN renders the connection URL. TLS is required and connects time
// out after five seconds.
func (c IngestionConfig) PostgresDSN() string {
	port := c.RDSPort
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.RDSUser, c.RDSPassword),
		Host:     net.JoinHostPort(c.RDSHost, strconv.Itoa(port)),
		Path:     "/" + c.RDSDB,
		RawQuery: "sslmode=require&connect_timeout=5",
	}
	return u.String()
}

// ValidateDatabase reports missing database coordinates.
func (c IngestionConfig) ValidateDatabase() error {
	var missing []string
	if c.RDSHost == "" {
		missing = append(missing, "RDS_HOST")
	}
	if c.RDSDB == "" {
		missing = append(missing, "RDS_DB")
	}
	if c.RDSUser == "" {
		missing = append(missing, "RDS_USER")
	}
	if len(missing) > 0 {
		return fmt.Errorf("ingestion config missing %v", missing)
	}
	return nil
}

// SecretsAPI is the Secrets Manager call used to fetch the config secret.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// NewSecretsClient builds a Secrets Manager client for region using the
// default AWS credentials chain.
func NewSecretsClient(ctx context.Context, region string) (*secretsmanager.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

// LoadIngestion resolves the ingestion configuration from the configured
// source. client is only used for the secretsmanager source.
func LoadIngestion(ctx context.Context, s Settings, client SecretsAPI) (IngestionConfig, error) {
	if s.Source == SourceEnv {
		return s.EnvIngestion, nil
	}
	if client == nil {
		return IngestionConfig{}, errors.New("secrets manager client required")
	}
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(s.SecretName)})
	if err != nil {
		return IngestionConfig{}, fmt.Errorf("get secret %s: %w", s.SecretName, err)
	}
	raw := aws.ToString(out.SecretString)
	if raw == "" && len(out.SecretBinary) > 0 {
		raw = string(out.SecretBinary)
	}
	return ParseSecret([]byte(raw), s.Env)
}

// ParseSecret decodes a JSON secret document and attaches the runtime env.
func ParseSecret(data []byte, runtimeEnv string) (IngestionConfig, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return IngestionConfig{}, fmt.Errorf("decode ingestion secret: %w", err)
	}
	return ingestionFromMap(m, runtimeEnv)
}

func ingestionFromMap(m map[string]any, runtimeEnv string) (IngestionConfig, error) {
	cfg := IngestionConfig{
		RDSHost:       cast.ToString(m["RDS_HOST"]),
		RDSDB:         cast.ToString(m["RDS_DB"]),
		RDSUser:       cast.ToString(m["RDS_USER"]),
		RDSPassword:   cast.ToString(m["RDS_PASSWORD"]),
		Region:        cast.ToString(m["REGION"]),
		S3InputBucket: cast.ToString(m["S3_INPUT_BUCKET"]),
		S3InputPrefix: cast.ToString(m["S3_INPUT_PREFIX"]),
		RuntimeEnv:    runtimeEnv,
	}
	if p, ok := m["RDS_PORT"]; ok && p != nil && p != "" {
		port, err := cast.ToIntE(p)
		if err != nil {
			return IngestionConfig{}, fmt.Errorf("RDS_PORT: %w", err)
		}
		cfg.RDSPort = port
	}
	return cfg, nil
}
