package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/Capitan-Parrot/wildfire-live/internal/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// objectStore - часть minio.Client, которой пользуется источник снимков
type objectStore interface {
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// Client читает почасовые снимки прямо из бакета, минуя HTTP API
type Client struct {
	client objectStore
	bucket string
	now    func() time.Time
}

func NewMinioClient(endpoint, accessKey, secretKey, bucket string, secure bool) (*Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &Client{client: client, bucket: bucket, now: time.Now}, nil
}

// ListSnapshots возвращает снимки не старше диапазона, от старых к новым
func (c *Client) ListSnapshots(ctx context.Context, r models.Range) ([]models.Snapshot, error) {
	start := c.now().UTC().Add(-r.Duration())

	objectCh := c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    models.SnapshotPrefix,
		Recursive: true,
	})

	var snapshots []models.Snapshot
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %w", object.Err)
		}

		// Пропускаем саму папку (если она есть в списке)
		if strings.HasSuffix(object.Key, "/") {
			continue
		}

		snap, ok := models.SnapshotFromKey(object.Key)
		if !ok {
			continue
		}
		if snap.Timestamp.Before(start) {
			continue
		}
		// ключ восстанавливаем из фактического имени объекта
		snap.Key = object.Key
		snapshots = append(snapshots, snap)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Timestamp.Before(snapshots[j].Timestamp)
	})
	return snapshots, nil
}

// FetchSnapshot скачивает и разбирает один снимок
func (c *Client) FetchSnapshot(ctx context.Context, s models.Snapshot) (models.FullState, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, s.Key, minio.GetObjectOptions{})
	if err != nil {
		return models.FullState{}, fmt.Errorf("get snapshot %s: %w", s.Key, err)
	}
	defer obj.Close()

	// Читаем содержимое файла
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, obj); err != nil {
		return models.FullState{}, fmt.Errorf("read snapshot %s: %w", s.Key, err)
	}

	state, dropped, err := models.DecodeFullState(buf.Bytes())
	if err != nil {
		return models.FullState{}, fmt.Errorf("snapshot %s: %w", s.Key, err)
	}
	if dropped > 0 {
		log.Printf("S3: snapshot %s dropped %d malformed features", s.Key, dropped)
	}
	return state, nil
}
