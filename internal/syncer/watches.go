package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Capitan-Parrot/wildfire-live/internal/database"
	"github.com/Capitan-Parrot/wildfire-live/internal/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	ErrInvalidWatch  = errors.New("invalid watch location")
	ErrWatchNotFound = errors.New("watch location not found")
)

// WatchStore persists watch locations. *database.Database implements it.
type WatchStore interface {
	ListWatchLocations(ctx context.Context) ([]models.WatchLocation, error)
	GetWatchLocation(ctx context.Context, locationID string) (*models.WatchLocation, error)
	CreateWatchLocation(ctx context.Context, loc *models.WatchLocation) error
	DeleteWatchLocation(ctx context.Context, locationID string) error
}

// Watches отдает точки наблюдения из базы, а без нее - из конфига
type Watches struct {
	store WatchStore

	mu     sync.Mutex
	static []models.WatchLocation
}

// NewWatches uses store when it is non-nil, otherwise the static list.
func NewWatches(store WatchStore, static []models.WatchLocation) *Watches {
	return &Watches{store: store, static: append([]models.WatchLocation(nil), static...)}
}

func (w *Watches) List(ctx context.Context) ([]models.WatchLocation, error) {
	if w.store != nil {
		locations, err := w.store.ListWatchLocations(ctx)
		if err != nil {
			return nil, fmt.Errorf("list watch locations: %w", err)
		}
		return locations, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return lo.Filter(w.static, func(loc models.WatchLocation, _ int) bool {
		return loc.Status == "" || loc.Status == models.WatchStatusActive
	}), nil
}

// Add validates loc, fills in id, status and creation time, and upserts it.
func (w *Watches) Add(ctx context.Context, loc models.WatchLocation) (models.WatchLocation, error) {
	loc.Name = strings.TrimSpace(loc.Name)
	if !loc.Center().Valid() {
		return models.WatchLocation{}, fmt.Errorf("%w: coordinates %v,%v", ErrInvalidWatch, loc.Lat, loc.Lon)
	}
	if loc.RadiusMiles <= 0 {
		return models.WatchLocation{}, fmt.Errorf("%w: radius must be positive", ErrInvalidWatch)
	}
	if loc.ID == "" {
		loc.ID = uuid.NewString()
	}
	if loc.Name == "" {
		loc.Name = loc.ID
	}
	if loc.Status == "" {
		loc.Status = models.WatchStatusActive
	}
	if loc.CreatedAt.IsZero() {
		loc.CreatedAt = time.Now().UTC()
	}

	if w.store != nil {
		if err := w.store.CreateWatchLocation(ctx, &loc); err != nil {
			return models.WatchLocation{}, err
		}
		saved, err := w.store.GetWatchLocation(ctx, loc.ID)
		if err != nil || saved == nil {
			return loc, err
		}
		return *saved, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, i, ok := lo.FindIndexOf(w.static, func(l models.WatchLocation) bool { return l.ID == loc.ID }); ok {
		loc.CreatedAt = w.static[i].CreatedAt
		w.static[i] = loc
	} else {
		w.static = append(w.static, loc)
	}
	return loc, nil
}

func (w *Watches) Remove(ctx context.Context, locationID string) error {
	if w.store != nil {
		err := w.store.DeleteWatchLocation(ctx, locationID)
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrWatchNotFound, locationID)
		}
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	before := len(w.static)
	w.static = lo.Reject(w.static, func(l models.WatchLocation, _ int) bool { return l.ID == locationID })
	if len(w.static) == before {
		return fmt.Errorf("%w: %s", ErrWatchNotFound, locationID)
	}
	return nil
}
