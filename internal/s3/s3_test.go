package s3

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Capitan-Parrot/wildfire-live/internal/models"
	"github.com/minio/minio-go/v7"
)

type fakeStore struct {
	objects []minio.ObjectInfo
}

func (f *fakeStore) ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	ch := make(chan minio.ObjectInfo, len(f.objects))
	for _, o := range f.objects {
		ch <- o
	}
	close(ch)
	return ch
}

func (f *fakeStore) GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (*minio.Object, error) {
	return nil, errors.New("not found")
}

func TestListSnapshotsFiltersByRange(t *testing.T) {
	t.Parallel()

	store := &fakeStore{objects: []minio.ObjectInfo{
		{Key: "snapshots/"},
		{Key: "snapshots/2025-08-01/11.json"},
		{Key: "snapshots/2025-08-01/06.json"},
		{Key: "snapshots/2025-07-31/10.json"},
		{Key: "snapshots/2025-08-01/readme.txt"},
		{Key: "snapshots/2025-08-01/09.json"},
	}}
	c := &Client{
		client: store,
		bucket: "wildfire-data",
		now:    func() time.Time { return time.Date(2025, 8, 1, 12, 30, 0, 0, time.UTC) },
	}

	tests := []struct {
		r    models.Range
		want []string
	}{
		{r: models.Range6h, want: []string{"snapshots/2025-08-01/09.json", "snapshots/2025-08-01/11.json"}},
		{r: models.Range24h, want: []string{
			"snapshots/2025-08-01/06.json", "snapshots/2025-08-01/09.json", "snapshots/2025-08-01/11.json",
		}},
		{r: models.Range3d, want: []string{
			"snapshots/2025-07-31/10.json", "snapshots/2025-08-01/06.json",
			"snapshots/2025-08-01/09.json", "snapshots/2025-08-01/11.json",
		}},
	}

	for _, tt := range tests {
		got, err := c.ListSnapshots(context.Background(), tt.r)
		if err != nil {
			t.Fatalf("%s: ListSnapshots error: %v", tt.r, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("%s: snapshots=%d want %d", tt.r, len(got), len(tt.want))
		}
		for i := range got {
			if got[i].Key != tt.want[i] {
				t.Fatalf("%s: snapshot %d=%s want %s", tt.r, i, got[i].Key, tt.want[i])
			}
		}
	}
}

func TestListSnapshotsListingError(t *testing.T) {
	t.Parallel()

	c := &Client{
		client: &fakeStore{objects: []minio.ObjectInfo{{Err: errors.New("access denied")}}},
		now:    time.Now,
	}
	if _, err := c.ListSnapshots(context.Background(), models.Range24h); err == nil {
		t.Fatalf("expected listing error")
	}
}

func TestFetchSnapshotError(t *testing.T) {
	t.Parallel()

	c := &Client{client: &fakeStore{}, now: time.Now}
	snap := models.NewSnapshot(time.Date(2025, 8, 1, 5, 0, 0, 0, time.UTC))
	if _, err := c.FetchSnapshot(context.Background(), snap); err == nil {
		t.Fatalf("expected error for missing object")
	}
}
