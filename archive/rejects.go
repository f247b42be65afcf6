// Package archive preserves rejected records as parquet files so failed
// batches can be triaged after the run, locally and optionally in S3.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	appconfig "retailflow/config"
	"retailflow/logger"
	"retailflow/models"
)

// RejectArchiver writes rejection batches as parquet files under a
// date-partitioned local directory and mirrors them to S3 when configured.
// A nil archiver is valid and archives nothing.
type RejectArchiver struct {
	config   *appconfig.Config
	s3Client *s3.Client
	runID    string
	log      *logger.Log
}

// NewRejectArchiver creates an archiver for one pipeline run. It returns
// nil when the archive is disabled.
func NewRejectArchiver(cfg *appconfig.Config, runID string) (*RejectArchiver, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}

	log := logger.GetLogger()

	if err := os.MkdirAll(cfg.Archive.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	archiver := &RejectArchiver{
		config: cfg,
		runID:  runID,
		log:    log,
	}

	if cfg.Archive.S3.Enabled {
		ctx := context.Background()

		loadOpts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Archive.S3.Region),
		}
		if cfg.Archive.S3.AccessKeyID != "" && cfg.Archive.S3.SecretAccessKey != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(
					cfg.Archive.S3.AccessKeyID,
					cfg.Archive.S3.SecretAccessKey,
					"",
				),
			))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}

		creds, err := awsCfg.Credentials.Retrieve(ctx)
		if err != nil || !creds.HasKeys() {
			return nil, fmt.Errorf("aws credentials not found")
		}

		archiver.s3Client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Archive.S3.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Archive.S3.Endpoint)
			}
			o.UsePathStyle = cfg.Archive.S3.PathStyle
		})
	}

	log.WithComponent("reject_archive").WithFields(logger.Fields{
		"dir":        cfg.Archive.Dir,
		"s3_enabled": cfg.Archive.S3.Enabled,
	}).Info("reject archive initialized")

	return archiver, nil
}

// Archive persists one rejection batch. An empty batch is a no-op.
func (a *RejectArchiver) Archive(ctx context.Context, entity string, rejections []models.Rejection) error {
	if a == nil || len(rejections) == 0 {
		return nil
	}

	now := time.Now().UTC()
	log := a.log.WithComponent("reject_archive").WithFields(logger.Fields{
		"entity":  entity,
		"records": len(rejections),
		"run_id":  a.runID,
	})

	data, err := a.createParquetFile(rejections)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}

	filename := fmt.Sprintf("%s_rejects_%s.parquet", entity, now.Format("20060102150405"))
	relPath := filepath.Join(
		fmt.Sprintf("entity=%s", entity),
		fmt.Sprintf("date=%s", now.Format("2006-01-02")),
		filename,
	)

	localPath := filepath.Join(a.config.Archive.Dir, relPath)
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("failed to create archive partition: %w", err)
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write archive file: %w", err)
	}

	log.WithFields(logger.Fields{"path": localPath, "file_size": len(data)}).Info("rejections archived")

	if a.s3Client != nil {
		key := filepath.ToSlash(filepath.Join("rejects", relPath))
		if err := a.uploadToS3(ctx, key, data); err != nil {
			log.WithError(err).
				WithEnv("S3_BUCKET").
				WithFields(logger.Fields{"bucket": a.config.Archive.S3.Bucket, "s3_key": key}).
				Error("failed to upload rejections to S3")
			return err
		}
		log.WithFields(logger.Fields{"s3_key": key}).Info("rejections uploaded to S3")
	}

	return nil
}

func (a *RejectArchiver) createParquetFile(rejections []models.Rejection) ([]byte, error) {
	fw := newMemoryFileWriter()

	pw, err := writer.NewParquetWriter(fw, new(parquetRejection), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	switch a.config.Archive.Compression {
	case "snappy":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	for _, rejection := range rejections {
		record := parquetRejection{
			RunID:      a.runID,
			Entity:     rejection.Entity,
			Key:        rejection.Key,
			Reason:     rejection.Reason,
			RejectedAt: rejection.At.UnixMilli(),
		}
		if err := pw.Write(record); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}

	return fw.Bytes(), nil
}

func (a *RejectArchiver) uploadToS3(ctx context.Context, key string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.config.Archive.S3.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":       "parquet",
			"compression":        a.config.Archive.Compression,
			"retailflow-version": a.config.Retailflow.Version,
		},
	}

	if _, err := a.s3Client.PutObject(context.WithoutCancel(ctx), input); err != nil {
		return fmt.Errorf("failed to upload to S3 bucket %s: %w", a.config.Archive.S3.Bucket, err)
	}
	return nil
}
