package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
)

// Archiver keeps raw provider payloads next to the audit trail so a failed
// import can be replayed or inspected later.
// A nil *Archiver is valid and archives nothing.
type Archiver struct {
	client Client
	bucket string
	now    func() time.Time

	mu     sync.Mutex
	ready  bool
	region string
}

// NewArchiver creates an archiver writing into bucket.
func NewArchiver(client Client, bucket, region string) *Archiver {
	return &Archiver{client: client, bucket: bucket, region: region, now: time.Now}
}

// ObjectKey builds the object name for one payload of one operation.
func ObjectKey(hotelID uint, operation, traceID, name string, at time.Time) string {
	return fmt.Sprintf("hotels/%d/%s/%s/%s-%s.json", hotelID, operation, at.UTC().Format("2006-01-02"), traceID, name)
}

// Archive stores payload as JSON and returns its object key.
func (a *Archiver) Archive(ctx context.Context, hotelID uint, operation, traceID, name string, payload any) (string, error) {
	if a == nil || a.client == nil {
		return "", nil
	}
	if err := a.ensureBucket(ctx); err != nil {
		return "", err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload %s: %w", name, err)
	}

	key := ObjectKey(hotelID, operation, traceID, name, a.now())
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", key, err)
	}
	return key, nil
}

// Load decodes an archived payload into out.
func (a *Archiver) Load(ctx context.Context, key string, out any) error {
	if a == nil || a.client == nil {
		return fmt.Errorf("archive is disabled")
	}
	reader, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer reader.Close()

	if err := json.NewDecoder(reader).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (a *Archiver) ensureBucket(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ready {
		return nil
	}

	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", a.bucket, err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", a.bucket, err)
		}
	}
	a.ready = true
	return nil
}
