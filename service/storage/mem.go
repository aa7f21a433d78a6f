package storage

import (
	"context"

	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"
)

// ProviderMem keeps file contents in process memory. Meant for tests and
// single node development setups; contents are lost on restart.
type ProviderMem struct {
	name   string
	bucket *blob.Bucket
}

func NewMemProvider(name string) *ProviderMem {
	return &ProviderMem{
		name:   name,
		bucket: memblob.OpenBucket(nil),
	}
}

func (provider *ProviderMem) Name() string {
	return provider.name
}

func (provider *ProviderMem) Bucket() string {
	return "mem"
}

func (provider *ProviderMem) Setup(_ context.Context) error {
	return nil
}

func (provider *ProviderMem) Upload(ctx context.Context, key string, contentType string, contents []byte) error {

	w, err := provider.bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: contentType})
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

func (provider *ProviderMem) Download(ctx context.Context, key string) ([]byte, error) {
	return provider.bucket.ReadAll(ctx, key)
}

func (provider *ProviderMem) Delete(ctx context.Context, key string) error {
	return provider.bucket.Delete(ctx, key)
}
