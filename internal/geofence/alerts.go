package geofence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/Capitan-Parrot/wildfire-live/internal/geomath"
	"github.com/Capitan-Parrot/wildfire-live/internal/metrics"
	"github.com/Capitan-Parrot/wildfire-live/internal/models"
	"github.com/google/uuid"
)

type Publisher interface {
	PublishAlert(ctx context.Context, alert models.Alert) error
}

// Evaluator turns hotspots inside watch radii into one alert per location,
// skipping pairs already alerted within the dedup TTL.
type Evaluator struct {
	dedup     Deduper
	publisher Publisher
	now       func() time.Time
}

func NewEvaluator(dedup Deduper, publisher Publisher) *Evaluator {
	return &Evaluator{dedup: dedup, publisher: publisher, now: time.Now}
}

func (e *Evaluator) Evaluate(ctx context.Context, locations []models.WatchLocation, hotspots []models.Hotspot) ([]models.Alert, error) {
	var (
		alerts []models.Alert
		errs   []error
	)

	for _, loc := range locations {
		if loc.Status != "" && loc.Status != models.WatchStatusActive {
			continue
		}

		alert, err := e.evaluateLocation(ctx, loc, hotspots)
		if err != nil {
			errs = append(errs, err)
		}
		if alert == nil {
			continue
		}

		if e.publisher != nil {
			if err := e.publisher.PublishAlert(ctx, *alert); err != nil {
				metrics.AlertPublishFailTotal.Inc()
				log.Printf("Alerts: failed to publish alert for %s: %v", loc.ID, err)
				errs = append(errs, fmt.Errorf("publish alert for %s: %w", loc.ID, err))
				continue
			}
			metrics.AlertsPublishedTotal.Inc()
		}
		log.Printf("Alerts: %d new hotspots near %s, closest %.1f mi", len(alert.Hotspots), loc.Name, alert.ClosestMiles)
		alerts = append(alerts, *alert)
	}

	return alerts, errors.Join(errs...)
}

func (e *Evaluator) evaluateLocation(ctx context.Context, loc models.WatchLocation, hotspots []models.Hotspot) (*models.Alert, error) {
	center := loc.Center()
	var found []models.AlertHotspot

	for _, h := range hotspots {
		dist := geomath.HaversineMiles(center, h.Location)
		if dist > loc.RadiusMiles {
			continue
		}

		isNew, err := e.dedup.MarkNew(ctx, loc.ID, h.ID)
		if err != nil {
			return alertFor(loc, found, e.now()), fmt.Errorf("dedup %s/%s: %w", loc.ID, h.ID, err)
		}
		if !isNew {
			continue
		}

		found = append(found, models.AlertHotspot{
			HotspotID:     h.ID,
			Lat:           h.Location.Lat,
			Lon:           h.Location.Lon,
			DistanceMiles: math.Round(dist*10) / 10,
			Confidence:    h.Confidence,
			FRP:           h.FRP,
			Satellite:     h.Satellite,
			AcqDate:       h.AcqDate,
			AcqTime:       h.AcqTime,
		})
	}

	return alertFor(loc, found, e.now()), nil
}

func alertFor(loc models.WatchLocation, found []models.AlertHotspot, now time.Time) *models.Alert {
	if len(found) == 0 {
		return nil
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].DistanceMiles < found[j].DistanceMiles
	})

	return &models.Alert{
		ID:           uuid.NewString(),
		LocationID:   loc.ID,
		LocationName: loc.Name,
		Email:        loc.Email,
		Hotspots:     found,
		ClosestMiles: found[0].DistanceMiles,
		CreatedAt:    now.UTC(),
	}
}
