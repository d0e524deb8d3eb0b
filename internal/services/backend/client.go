package backend

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Capitan-Parrot/wildfire-live/internal/metrics"
	"github.com/Capitan-Parrot/wildfire-live/internal/models"
	"github.com/goccy/go-json"
)

const maxBodySize = 64 << 20

// Client ходит в HTTP API бэкенда за текущим состоянием и снимками
type Client struct {
	URL  string
	http *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		URL:  strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// FetchLatestState загружает /state/latest; битые фичи отбрасываются по одной
func (c *Client) FetchLatestState(ctx context.Context) (models.FullState, error) {
	body, err := c.get(ctx, "state_latest", "/state/latest", nil)
	if err != nil {
		return models.FullState{}, err
	}

	state, dropped, err := models.DecodeFullState(body)
	if err != nil {
		return models.FullState{}, err
	}
	if dropped > 0 {
		log.Printf("Backend: /state/latest dropped %d malformed features", dropped)
	}
	return state, nil
}

type snapshotList struct {
	Range     string `json:"range"`
	Count     int    `json:"count"`
	Snapshots []struct {
		Key       string `json:"key"`
		Timestamp string `json:"timestamp"`
		Date      string `json:"date"`
		Hour      string `json:"hour"`
	} `json:"snapshots"`
}

// ListSnapshots returns the snapshots of the range ordered oldest to newest.
func (c *Client) ListSnapshots(ctx context.Context, r models.Range) ([]models.Snapshot, error) {
	body, err := c.get(ctx, "replay_list", "/replay/list", url.Values{"range": {string(r)}})
	if err != nil {
		return nil, err
	}

	var list snapshotList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decode snapshot list: %w", err)
	}

	snapshots := make([]models.Snapshot, 0, len(list.Snapshots))
	for _, item := range list.Snapshots {
		snap, ok := models.SnapshotFromKey(item.Key)
		if !ok {
			snap, ok = models.SnapshotFromKey(fmt.Sprintf("%s%s/%s.json", models.SnapshotPrefix, item.Date, item.Hour))
		}
		if !ok {
			log.Printf("Backend: skipping snapshot with unparseable key %q", item.Key)
			continue
		}
		snapshots = append(snapshots, snap)
	}
	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].Timestamp.Before(snapshots[j].Timestamp)
	})

	return snapshots, nil
}

func (c *Client) FetchSnapshot(ctx context.Context, s models.Snapshot) (models.FullState, error) {
	path := fmt.Sprintf("/replay/snapshot/%s/%s", url.PathEscape(s.Date), url.PathEscape(s.Hour))
	body, err := c.get(ctx, "replay_snapshot", path, nil)
	if err != nil {
		return models.FullState{}, err
	}

	state, dropped, err := models.DecodeFullState(body)
	if err != nil {
		return models.FullState{}, err
	}
	if dropped > 0 {
		log.Printf("Backend: snapshot %s dropped %d malformed features", s.Key, dropped)
	}
	return state, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values) ([]byte, error) {
	u := c.URL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.BackendRequestDurationMs.WithLabelValues(endpoint).Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("bad status: %s, error: %s", resp.Status, bodyBytes)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
