package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 30 * time.Second
	uploadTimeout  = 2 * time.Minute

	rootLayerContentType = "text/plain; charset=utf-8"
)

// API is the subset of the S3 client used here.
type API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Client mirrors published root layers to an S3-compatible bucket.
type Client struct {
	client API
	bucket string
	prefix string
	logger *zap.Logger
}

// NewClient creates an S3 client for conf and checks that the bucket is
// reachable.
func NewClient(ctx context.Context, conf *Config, logger *zap.Logger) (*Client, error) {
	if conf == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}

	creds := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
		conf.AccessKeyID,
		conf.SecretAccessKey,
		"",
	))

	opts := s3.Options{
		Region:           conf.Region,
		Credentials:      creds,
		RetryMode:        aws.RetryModeAdaptive,
		RetryMaxAttempts: 3,
		UsePathStyle:     conf.UsePathStyle,
	}
	if conf.Endpoint != "" {
		opts.BaseEndpoint = aws.String(conf.Endpoint)
	}

	return NewClientWithAPI(ctx, s3.New(opts), conf, logger)
}

// NewClientWithAPI wraps an existing S3 API implementation.
func NewClientWithAPI(ctx context.Context, api API, conf *Config, logger *zap.Logger) (*Client, error) {
	c := &Client{
		client: api,
		bucket: conf.Bucket,
		prefix: conf.Prefix,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(conf.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to access bucket %s: %w", conf.Bucket, err)
	}
	return c, nil
}

// UploadBytes stores data under key.
func (c *Client) UploadBytes(ctx context.Context, key, contentType string, data []byte) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload data to S3: %w", err)
	}
	return nil
}

// MirrorRoot uploads a rendered root layer below the configured prefix and
// returns its s3:// location.
func (c *Client) MirrorRoot(ctx context.Context, key string, content []byte) (string, error) {
	fullKey := path.Join(c.prefix, key)
	if err := c.UploadBytes(ctx, fullKey, rootLayerContentType, content); err != nil {
		return "", fmt.Errorf("failed to mirror %s: %w", key, err)
	}

	location := fmt.Sprintf("s3://%s/%s", c.bucket, fullKey)
	c.logger.Info("Mirrored root layer", zap.String("location", location), zap.Int("bytes", len(content)))
	return location, nil
}

// GetObject returns the object stored under key.
func (c *Client) GetObject(ctx context.Context, key string) (S3Object, error) {
	result, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(path.Join(c.prefix, key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	return &s3Object{
		ReadCloser:    result.Body,
		contentLength: aws.ToInt64(result.ContentLength),
		contentType:   aws.ToString(result.ContentType),
	}, nil
}
