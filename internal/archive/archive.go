// Package archive uploads snapshots of the rule store to S3-compatible storage.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Config holds S3 connection settings.
type Config struct {
	Region string `yaml:"region" json:"region"`
	Bucket string `yaml:"bucket" json:"bucket"`
	Prefix string `yaml:"prefix" json:"prefix"`

	// Endpoint is an optional custom endpoint (MinIO, LocalStack).
	Endpoint     string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	UsePathStyle bool   `yaml:"use_path_style" json:"use_path_style"`

	// Static credentials; the default AWS chain is used when unset.
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"-"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"-"`
	SessionToken    string `yaml:"session_token,omitempty" json:"-"`

	// ServerSideEncryption is AES256 or aws:kms.
	ServerSideEncryption string `yaml:"server_side_encryption,omitempty" json:"server_side_encryption,omitempty"`
	RetryMaxAttempts     int    `yaml:"retry_max_attempts" json:"retry_max_attempts"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Region:           "us-east-1",
		Bucket:           "kerneural-rules",
		Prefix:           "rules/",
		RetryMaxAttempts: 3,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Region == "" {
		return errors.New("archive: region is required")
	}
	if c.Bucket == "" {
		return errors.New("archive: bucket is required")
	}
	switch c.ServerSideEncryption {
	case "", "AES256", "aws:kms":
	default:
		return fmt.Errorf("archive: unsupported server side encryption %q", c.ServerSideEncryption)
	}
	return nil
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver copies the rule store to a bucket after every change.
type Archiver struct {
	client putObjectAPI
	config *Config
	logger *slog.Logger
	now    func() time.Time

	uploads  atomic.Int64
	failures atomic.Int64
}

// New creates an Archiver backed by a real S3 client.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (*Archiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	if cfg.RetryMaxAttempts > 0 {
		opts = append(opts, config.WithRetryMaxAttempts(cfg.RetryMaxAttempts))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	logger.Info("rule archive initialized", "bucket", cfg.Bucket, "region", cfg.Region)
	return newArchiver(client, cfg, logger), nil
}

func newArchiver(client putObjectAPI, cfg *Config, logger *slog.Logger) *Archiver {
	return &Archiver{
		client: client,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Key returns the object key for a snapshot of file taken at t.
func (a *Archiver) Key(file string, t time.Time) string {
	base := filepath.Base(file)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return path.Join(a.config.Prefix, fmt.Sprintf("%s-%s%s", name, t.UTC().Format("20060102T150405Z"), ext))
}

// Snapshot uploads the current content of file and returns the object key.
func (a *Archiver) Snapshot(ctx context.Context, file string) (string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		a.failures.Add(1)
		return "", fmt.Errorf("archive: read %s: %w", file, err)
	}

	key := a.Key(file, a.now())
	input := &s3.PutObjectInput{
		Bucket:        aws.String(a.config.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/yaml"),
	}
	if a.config.ServerSideEncryption != "" {
		input.ServerSideEncryption = types.ServerSideEncryption(a.config.ServerSideEncryption)
	}

	if _, err := a.client.PutObject(ctx, input); err != nil {
		a.failures.Add(1)
		return "", fmt.Errorf("archive: upload %s: %w", key, err)
	}

	a.uploads.Add(1)
	a.logger.Debug("rule store archived", "bucket", a.config.Bucket, "key", key, "bytes", len(data))
	return key, nil
}

// Metrics holds archive statistics.
type Metrics struct {
	Uploads  int64 `json:"uploads"`
	Failures int64 `json:"failures"`
}

// Metrics returns archive statistics.
func (a *Archiver) Metrics() Metrics {
	return Metrics{
		Uploads:  a.uploads.Load(),
		Failures: a.failures.Load(),
	}
}
