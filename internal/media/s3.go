package media

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"eshop/internal/payload"
	dErrors "eshop/pkg/domain-errors"
)

// objectAPI is the subset of *s3.Client used here.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// PublicURL is the base objects are served from. Defaults to
	// <Endpoint>/<Bucket>.
	PublicURL string
}

// S3 stores objects in an S3-compatible bucket (AWS, MinIO).
type S3 struct {
	client  objectAPI
	bucket  string
	baseURL string
	now     func() time.Time
	logger  *slog.Logger
	metrics *Metrics
}

type S3Option func(*S3)

func WithS3Logger(logger *slog.Logger) S3Option {
	return func(s *S3) {
		s.logger = logger
	}
}

func WithS3Metrics(m *Metrics) S3Option {
	return func(s *S3) {
		s.metrics = m
	}
}

func withObjectAPI(api objectAPI) S3Option {
	return func(s *S3) {
		s.client = api
	}
}

func NewS3(ctx context.Context, cfg S3Config, opts ...S3Option) (*S3, error) {
	s := &S3{
		bucket:  cfg.Bucket,
		baseURL: strings.TrimSuffix(cfg.PublicURL, "/"),
		now:     time.Now,
	}
	if s.baseURL == "" {
		s.baseURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.client != nil {
		return s, nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	s.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return s, nil
}

func (s *S3) Upload(ctx context.Context, folder string, f *payload.File) (Object, error) {
	body, err := f.Open()
	if err != nil {
		return Object{}, fmt.Errorf("open upload %s: %w", f.Filename, err)
	}
	defer body.Close()

	key := objectKey(folder, f.Filename, s.now())
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(f.ContentType),
		ContentLength: aws.Int64(f.Size),
	})
	if err != nil {
		s.metrics.incUpload(folder, "error")
		s.logger.ErrorContext(ctx, "media upload failed",
			"key", key,
			"error", err,
		)
		return Object{}, dErrors.Wrap(err, dErrors.CodeUpstream, "Media upload failed. Please try again later.")
	}
	s.metrics.incUpload(folder, "ok")
	return Object{URL: s.baseURL + "/" + key, Key: key}, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstream, "Media delete failed")
	}
	return nil
}

func (s *S3) KeyFromURL(url string) string {
	return keyFromURL(s.baseURL, url)
}

var _ Storage = (*S3)(nil)
