package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

// IBlobClient stores raw scan uploads so a scan can be re-run against the
// original bytes.
type IBlobClient interface {
	Upload(ctx context.Context, key string, content []byte) error
	Download(ctx context.Context, key string) ([]byte, error)
}

type S3BlobClient struct {
	Bucket string
	Client *s3.Client
	Logger *logrus.Logger
}

func NewS3BlobClient(cfg aws.Config, bucket string, logger *logrus.Logger) *S3BlobClient {
	return &S3BlobClient{
		Bucket: bucket,
		Client: s3.NewFromConfig(cfg),
		Logger: logger,
	}
}

func (blobClient *S3BlobClient) Upload(ctx context.Context, key string, content []byte) error {
	_, err := blobClient.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(blobClient.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(content),
	})
	if err != nil {
		return fmt.Errorf("uploading %s to bucket %s: %w", key, blobClient.Bucket, err)
	}
	blobClient.Logger.Debugf("Uploaded %d bytes to s3://%s/%s", len(content), blobClient.Bucket, key)
	return nil
}

func (blobClient *S3BlobClient) Download(ctx context.Context, key string) ([]byte, error) {
	output, err := blobClient.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(blobClient.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("downloading %s from bucket %s: %w", key, blobClient.Bucket, err)
	}
	defer output.Body.Close()
	return io.ReadAll(output.Body)
}
