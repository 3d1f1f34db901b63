package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/eardogger/internal/server/config"
	"github.com/dmitrijs2005/eardogger/internal/server/scheduler"
	"github.com/dmitrijs2005/eardogger/internal/server/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func stubS3(t *testing.T, p *fakePutter) *s3.Options {
	t.Helper()
	origLoad, origNew := loadDefaultAWSConfig, newS3Client
	t.Cleanup(func() { loadDefaultAWSConfig, newS3Client = origLoad, origNew })

	opts := &s3.Options{}
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3Client = func(cfg aws.Config, optFns ...func(*s3.Options)) objectPutter {
		for _, fn := range optFns {
			fn(opts)
		}
		return p
	}
	return opts
}

var fixed = time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)

func newSnapshotter(t *testing.T, cfg *config.Config) *Snapshotter {
	st := storagetest.Open(t)
	storagetest.SeedUser(t, st, "nick")
	sched := scheduler.New(st.Writer, st.Reader, scheduler.Options{})
	t.Cleanup(sched.Close)
	return New(sched, cfg, func() time.Time { return fixed }, nil)
}

func TestWriteFile(t *testing.T) {
	s := newSnapshotter(t, &config.Config{})
	dest := filepath.Join(t.TempDir(), "copy.db")

	require.NoError(t, s.WriteFile(context.Background(), dest))

	db, err := sql.Open("sqlite", dest)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	assert.Equal(t, 1, n)

	assert.Error(t, s.WriteFile(context.Background(), dest), "never overwrites")
}

func TestUpload(t *testing.T) {
	p := &fakePutter{}
	opts := stubS3(t, p)
	s := newSnapshotter(t, &config.Config{S3Bucket: "backups", S3BaseEndpoint: "http://minio:9000"})

	path := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, os.WriteFile(path, []byte("sqlite bytes"), 0o600))

	key, err := s.Upload(context.Background(), path)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^snapshots/2024/02/03/[0-9a-f-]{36}\.db$`), key)
	assert.Equal(t, "backups", aws.ToString(p.in.Bucket))
	assert.Equal(t, key, aws.ToString(p.in.Key))
	assert.Equal(t, []byte("sqlite bytes"), p.body)
	assert.Equal(t, "http://minio:9000", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)
}

func TestUpload_Errors(t *testing.T) {
	s := newSnapshotter(t, &config.Config{})
	_, err := s.Upload(context.Background(), "whatever")
	assert.ErrorIs(t, err, ErrNoBucket)

	p := &fakePutter{err: errors.New("boom")}
	stubS3(t, p)
	s = newSnapshotter(t, &config.Config{S3Bucket: "b"})
	path := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	_, err = s.Upload(context.Background(), path)
	assert.ErrorContains(t, err, "boom")
}
