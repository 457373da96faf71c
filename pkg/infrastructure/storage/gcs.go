package storage

import (
	"context"
	"io"

	"cloud.google.com/go/storage"

	"github.com/formcoach/server/pkg/faults"
)

// StorageAdapter provides blob storage operations using Google Cloud Storage.
// Inbound WhatsApp media is copied here before analysis so artifacts can
// reference a stable storage path instead of a short-lived provider URL.
type StorageAdapter struct {
	Client *storage.Client
}

func (a *StorageAdapter) Write(ctx context.Context, bucketName, objectName, contentType string, data []byte) error {
	wc := a.Client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	if contentType != "" {
		wc.ContentType = contentType
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return faults.Transient("storage", err)
	}
	if err := wc.Close(); err != nil {
		return faults.Transient("storage", err)
	}
	return nil
}

func (a *StorageAdapter) Read(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	rc, err := a.Client.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, faults.Transient("storage", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, faults.Transient("storage", err)
	}
	return data, nil
}
