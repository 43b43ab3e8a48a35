package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"golang.org/x/sync/semaphore"

	"gridsync/pkg/config"
	"gridsync/pkg/logger"
	"gridsync/pkg/transfer"
)

// Archiver writes the terminal status of finished transfer tasks to an S3
// bucket as JSON documents, one object per task.
type Archiver struct {
	s3Client *awss3.S3
	bucket   string
	prefix   string
	uploads  *semaphore.Weighted
	logger   *logger.Logger
}

func NewArchiver(s3Client *awss3.S3, cfg *config.ArchiveConfig) *Archiver {
	return &Archiver{
		s3Client: s3Client,
		bucket:   cfg.S3.Bucket,
		prefix:   cfg.Prefix,
		uploads:  semaphore.NewWeighted(int64(cfg.S3.MaxConcurrentUploads)),
		logger:   logger.NewDefault(),
	}
}

func (a *Archiver) ArchiveStatus(ctx context.Context, status *transfer.TaskStatus) error {
	if status.TaskID == "" {
		return fmt.Errorf("task status has no task id")
	}

	if err := a.uploads.Acquire(ctx, 1); err != nil {
		return err
	}
	defer a.uploads.Release(1)

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal task status: %w", err)
	}

	key := path.Join(a.prefix, status.TaskID+".json")
	_, err = a.s3Client.PutObjectWithContext(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		ContentType: aws.String("application/json"),
		Body:        bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("put archive object: %w", err)
	}

	a.logger.Info("task status archived", map[string]any{
		"task_id": status.TaskID,
		"bucket":  a.bucket,
		"key":     key,
	})
	return nil
}
