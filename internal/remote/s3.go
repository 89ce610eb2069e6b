package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// S3API is the subset of *s3.Client the store uses.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config holds connection settings for an S3-compatible bucket.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// S3 stores objects in a bucket and uses ETags as versions, relying on
// conditional writes (If-Match / If-None-Match).
type S3 struct {
	client S3API
	bucket string
	logger *zap.Logger
}

// S3Option configures S3.
type S3Option func(*S3)

// WithLogger sets a logger for S3.
func WithLogger(logger *zap.Logger) S3Option {
	return func(s *S3) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewS3 builds a client from cfg. Static keys are used when given, otherwise
// the default AWS credential chain.
func NewS3(ctx context.Context, cfg S3Config, opts ...S3Option) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		if cfg.AccessKey == "" || cfg.SecretKey == "" {
			return nil, errors.New("s3 access key and secret key must be set together")
		}
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
				endpoint = "https://" + endpoint
			}
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewS3WithClient(client, cfg.Bucket, opts...), nil
}

// NewS3WithClient wraps an existing client.
func NewS3WithClient(client S3API, bucket string, opts ...S3Option) *S3 {
	s := &S3{client: client, bucket: bucket, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *S3) Get(ctx context.Context, path string) (Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) || apiCode(err) == "NoSuchKey" || apiCode(err) == "NotFound" {
			return Object{}, ErrNotFound
		}
		return Object{}, fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return Object{}, fmt.Errorf("failed to read object: %w", err)
	}
	return Object{Data: data, Version: aws.ToString(out.ETag)}, nil
}

func (s *S3) Put(ctx context.Context, path string, data []byte, expected string) (string, error) {
	pushID := uuid.NewString()
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata:    map[string]string{"push-id": pushID},
	}
	if expected == "" {
		in.IfNoneMatch = aws.String("*")
	} else {
		in.IfMatch = aws.String(expected)
	}
	out, err := s.client.PutObject(ctx, in)
	if err != nil {
		switch apiCode(err) {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return "", ErrVersionConflict
		}
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	s.logger.Debug("object uploaded",
		zap.String("bucket", s.bucket), zap.String("key", path), zap.String("push_id", pushID))
	return aws.ToString(out.ETag), nil
}

func apiCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
