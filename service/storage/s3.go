package storage

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gocloud.dev/blob"
	"gocloud.dev/blob/s3blob"
)

// ProviderS3 keeps file contents in an S3 compatible bucket.
type ProviderS3 struct {
	name   string
	bucket string

	s3Endpoint    string
	s3AccessKeyID string
	s3Secret      string
	s3Token       string
	s3Region      string
	client        *s3.Client
}

func NewS3Provider(name, bucket, s3Endpoint, s3Region, s3Secret, s3Token, s3AccessKeyID string) *ProviderS3 {
	return &ProviderS3{
		name:          name,
		bucket:        bucket,
		s3Endpoint:    s3Endpoint,
		s3Region:      s3Region,
		s3Secret:      s3Secret,
		s3Token:       s3Token,
		s3AccessKeyID: s3AccessKeyID,
	}
}

func (provider *ProviderS3) Name() string {
	return provider.name
}

func (provider *ProviderS3) Bucket() string {
	return provider.bucket
}

func (provider *ProviderS3) Setup(_ context.Context) error {
	s3Config := aws.Config{
		Credentials:  credentials.NewStaticCredentialsProvider(provider.s3AccessKeyID, provider.s3Secret, provider.s3Token),
		BaseEndpoint: aws.String(provider.s3Endpoint),
		Region:       provider.s3Region,
	}

	provider.client = s3.NewFromConfig(s3Config, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return nil
}

func (provider *ProviderS3) open(ctx context.Context) (*blob.Bucket, error) {
	return s3blob.OpenBucketV2(ctx, provider.client, provider.bucket, nil)
}

func (provider *ProviderS3) Upload(ctx context.Context, key string, contentType string, contents []byte) error {

	bucket, err := provider.open(ctx)
	if err != nil {
		return err
	}
	defer bucket.Close()

	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return err
	}

	_, err = w.Write(contents)
	if err != nil {
		_ = w.Close()
		return err
	}

	return w.Close()
}

func (provider *ProviderS3) Download(ctx context.Context, key string) ([]byte, error) {

	bucket, err := provider.open(ctx)
	if err != nil {
		return nil, err
	}
	defer bucket.Close()

	return bucket.ReadAll(ctx, key)
}

func (provider *ProviderS3) Delete(ctx context.Context, key string) error {

	bucket, err := provider.open(ctx)
	if err != nil {
		return err
	}
	defer bucket.Close()

	return bucket.Delete(ctx, key)
}
