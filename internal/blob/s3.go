package blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store keeps documents in an S3 bucket.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store uses the given aws config; a non-empty endpoint switches to path-style addressing (minio, localstack).
func NewS3Store(cfg aws.Config, bucket, endpoint string) *S3Store {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, bucket: bucket}
}

func (s *S3Store) Name() string { return "s3" }

func (s *S3Store) Upload(ctx context.Context, key string, body []byte, meta Metadata) error {
	input := &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Body:     bytes.NewReader(body),
		Metadata: meta.Map(),
	}
	if meta.ContentType != "" {
		input.ContentType = aws.String(meta.ContentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, Object{Key: aws.ToString(obj.Key)})
		}
	}
	return objects, nil
}

func (s *S3Store) Download(ctx context.Context, key, dir string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer out.Body.Close()
	return writeTemp(dir, key, out.Body)
}

func (s *S3Store) Ping(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("bucket %s unreachable: %w", s.bucket, err)
	}
	return nil
}

var _ Store = (*S3Store)(nil)
