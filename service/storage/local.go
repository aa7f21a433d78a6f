package storage

import (
	"context"
	"fmt"
	"os"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
)

// ProviderLocal keeps file contents on the local filesystem through a fileblob bucket.
type ProviderLocal struct {
	name      string
	directory string
}

func NewLocalProvider(name, directory string) *ProviderLocal {
	return &ProviderLocal{
		name:      name,
		directory: directory,
	}
}

func (provider *ProviderLocal) Name() string {
	return provider.name
}

func (provider *ProviderLocal) Bucket() string {
	return provider.directory
}

func (provider *ProviderLocal) Setup(_ context.Context) error {
	return os.MkdirAll(provider.directory, 0755)
}

func (provider *ProviderLocal) open(ctx context.Context) (*blob.Bucket, error) {
	return blob.OpenBucket(ctx, fmt.Sprintf("file://%s", provider.directory))
}

func (provider *ProviderLocal) Upload(ctx context.Context, key string, contentType string, contents []byte) error {

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

func (provider *ProviderLocal) Download(ctx context.Context, key string) ([]byte, error) {

	bucket, err := provider.open(ctx)
	if err != nil {
		return nil, err
	}
	defer bucket.Close()

	return bucket.ReadAll(ctx, key)
}

func (provider *ProviderLocal) Delete(ctx context.Context, key string) error {

	bucket, err := provider.open(ctx)
	if err != nil {
		return err
	}
	defer bucket.Close()

	return bucket.Delete(ctx, key)
}
