package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	ErrInvalidArchiveConfig = errors.New("snapshot: invalid archive config")
	ErrArchive              = errors.New("snapshot: archive failed")
)

// Archiver stores a copy of the rendered YAML outside the database.
type Archiver interface {
	Archive(ctx context.Context, s Snapshot) error
}

// S3Client is the subset of the S3 API the archiver uses.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ArchiveConfig configures the S3 archive. An empty bucket disables it.
type ArchiveConfig struct {
	Bucket         string `env:"SNAPSHOT_S3_BUCKET"`
	Region         string `env:"SNAPSHOT_S3_REGION" envDefault:"us-east-1"`
	AccessKeyID    string `env:"SNAPSHOT_S3_ACCESS_KEY_ID"`
	SecretKey      string `env:"SNAPSHOT_S3_SECRET_KEY"`
	Endpoint       string `env:"SNAPSHOT_S3_ENDPOINT"`
	ForcePathStyle bool   `env:"SNAPSHOT_S3_FORCE_PATH_STYLE" envDefault:"false"`
}

// Enabled reports whether a bucket is configured.
func (c ArchiveConfig) Enabled() bool { return c.Bucket != "" }

// S3Archiver writes snapshots to snapshots/{project_id}/{id}.yaml.
type S3Archiver struct {
	client S3Client
	bucket string
}

// NewS3Archiver wraps an existing client.
func NewS3Archiver(client S3Client, bucket string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket}
}

// NewS3ArchiverFromConfig builds an S3 client from cfg.
func NewS3ArchiverFromConfig(ctx context.Context, cfg ArchiveConfig) (*S3Archiver, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidArchiveConfig
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchiveConfig, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return NewS3Archiver(client, cfg.Bucket), nil
}

// ArchiveKey returns the object key for s.
func ArchiveKey(s Snapshot) string {
	return "snapshots/" + s.ProjectID + "/" + s.ID + ".yaml"
}

func (a *S3Archiver) Archive(ctx context.Context, s Snapshot) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(ArchiveKey(s)),
		Body:        strings.NewReader(s.YAML),
		ContentType: aws.String("application/yaml"),
		Metadata: map[string]string{
			"updated-by": s.UpdatedBy,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArchive, err)
	}
	return nil
}
