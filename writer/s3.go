package writer

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "fxstory/config"
	"fxstory/logger"
)

// PutObjectAPI is the part of the S3 client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader copies run artifacts to an S3 bucket.
type S3Uploader struct {
	client PutObjectAPI
	bucket string
	prefix string
	log    *logger.Log
}

// NewS3Uploader configures the AWS SDK from cfg.Storage.S3. Static keys are
// used when both are set, otherwise the default credential chain.
func NewS3Uploader(ctx context.Context, cfg *appconfig.Config, log *logger.Log) (*S3Uploader, error) {
	s3cfg := cfg.Storage.S3
	if s3cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is not set")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(s3cfg.Region)}
	if s3cfg.AccessKeyID != "" && s3cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				s3cfg.AccessKeyID,
				s3cfg.SecretAccessKey,
				"",
			),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.WithComponent("s3_uploader").WithError(err).Warn("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s3cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3cfg.Endpoint)
		}
		o.UsePathStyle = s3cfg.PathStyle
	})

	log.WithComponent("s3_uploader").WithFields(logger.Fields{
		"region": s3cfg.Region,
		"bucket": s3cfg.Bucket,
	}).Debug("s3 uploader initialized")

	return NewS3UploaderWithClient(client, s3cfg.Bucket, s3cfg.Prefix, log), nil
}

// NewS3UploaderWithClient wraps an existing client.
func NewS3UploaderWithClient(client PutObjectAPI, bucket, prefix string, log *logger.Log) *S3Uploader {
	return &S3Uploader{client: client, bucket: bucket, prefix: prefix, log: log}
}

// ObjectKey builds <prefix>/<run-date>/<run-id>/<file>.
func ObjectKey(prefix string, runDate time.Time, runID, file string) string {
	parts := []string{}
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, runDate.UTC().Format("2006-01-02"), runID, filepath.Base(file))
	return path.Join(parts...)
}

// Key returns the object key of file for the given run.
func (u *S3Uploader) Key(runDate time.Time, runID, file string) string {
	return ObjectKey(u.prefix, runDate, runID, file)
}

// Upload puts the local file at localPath under key.
func (u *S3Uploader) Upload(ctx context.Context, key, localPath string) error {
	start := time.Now()
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	}
	if ct := mime.TypeByExtension(filepath.Ext(localPath)); ct != "" {
		input.ContentType = aws.String(ct)
	}
	if _, err := u.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", u.bucket, key, err)
	}

	u.log.WithComponent("s3_uploader").WithFields(logger.Fields{
		"s3_key":      key,
		"bytes":       info.Size(),
		"duration_ms": float64(time.Since(start).Nanoseconds()) / 1e6,
	}).Info("artifact uploaded")
	return nil
}
