// Package snapshot copies the live database to a file with VACUUM INTO and
// optionally ships the copy to S3-compatible storage.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/eardogger/internal/dbx"
	"github.com/dmitrijs2005/eardogger/internal/logging"
	"github.com/dmitrijs2005/eardogger/internal/server/config"
	"github.com/dmitrijs2005/eardogger/internal/server/scheduler"
	"github.com/dmitrijs2005/eardogger/internal/timex"
	"github.com/google/uuid"
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3Client = func(cfg aws.Config, optFns ...func(*s3.Options)) objectPutter {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

var ErrNoBucket = errors.New("no s3 bucket configured")

type Snapshotter struct {
	sched  *scheduler.Scheduler
	cfg    *config.Config
	now    timex.Clock
	logger logging.Logger
}

func New(sched *scheduler.Scheduler, cfg *config.Config, now timex.Clock, logger logging.Logger) *Snapshotter {
	if now == nil {
		now = timex.UTCNow
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Snapshotter{sched: sched, cfg: cfg, now: now, logger: logger}
}

// StorageKey is where a snapshot taken at t lands in the bucket.
func StorageKey(t time.Time) string {
	return fmt.Sprintf("snapshots/%04d/%02d/%02d/%s.db", t.Year(), int(t.Month()), t.Day(), uuid.New())
}

// WriteFile writes a consistent copy of the database to dest, which must
// not exist yet.
func (s *Snapshotter) WriteFile(ctx context.Context, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("snapshot destination %s already exists", dest)
	}
	return s.sched.Maintenance(ctx, func(ctx context.Context, db dbx.DBTX) error {
		if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
			return fmt.Errorf("vacuum into %s: %w", dest, err)
		}
		return nil
	})
}

func (s *Snapshotter) client(ctx context.Context) (objectPutter, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(s.cfg.S3Region)}
	if s.cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.cfg.S3AccessKey, s.cfg.S3SecretKey, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return newS3Client(awsCfg, func(o *s3.Options) {
		if s.cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.cfg.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Upload puts the file at path into the configured bucket and returns its
// key.
func (s *Snapshotter) Upload(ctx context.Context, path string) (string, error) {
	if s.cfg.S3Bucket == "" {
		return "", ErrNoBucket
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	c, err := s.client(ctx)
	if err != nil {
		return "", err
	}
	key := StorageKey(s.now())
	_, err = c.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.S3Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/vnd.sqlite3"),
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	s.logger.Info(ctx, "snapshot uploaded", "bucket", s.cfg.S3Bucket, "key", key)
	return key, nil
}
