package reports

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3BlobStore.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3BlobStore uploads photos to an S3 bucket under an optional key prefix.
type S3BlobStore struct {
	client S3API
	bucket string
	prefix string
}

var _ BlobStore = (*S3BlobStore)(nil)

func NewS3BlobStore(client S3API, bucket, prefix string) *S3BlobStore {
	if client == nil {
		panic("reports: s3 client cannot be nil")
	}
	if strings.TrimSpace(bucket) == "" {
		panic("reports: s3 bucket cannot be empty")
	}
	return &S3BlobStore{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Put uploads data and returns an s3://bucket/key locator.
func (s *S3BlobStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := objectKey(s.prefix, name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("reports: s3 put %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

func objectKey(prefix, name string) string {
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
