package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Capitan-Parrot/wildfire-live/internal/models"
	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/goccy/go-json"
)

func mockConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	return config
}

func TestPublishAlert(t *testing.T) {
	t.Parallel()

	sp := mocks.NewSyncProducer(t, mockConfig())
	p := newProducer(sp, "wildfire-alerts")
	defer p.Close()

	alert := models.Alert{
		ID:           "alert-1",
		LocationID:   "cabin",
		LocationName: "Cabin",
		Hotspots:     []models.AlertHotspot{{HotspotID: "h1", DistanceMiles: 1.2}},
		ClosestMiles: 1.2,
		CreatedAt:    time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got models.Alert
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.ID != alert.ID || got.LocationID != "cabin" || len(got.Hotspots) != 1 {
			return fmt.Errorf("unexpected payload %s", val)
		}
		return nil
	})

	if err := p.PublishAlert(context.Background(), alert); err != nil {
		t.Fatalf("PublishAlert error: %v", err)
	}
}

func TestPublishAlertFailure(t *testing.T) {
	t.Parallel()

	sp := mocks.NewSyncProducer(t, mockConfig())
	p := newProducer(sp, "wildfire-alerts")
	defer p.Close()

	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := p.PublishAlert(context.Background(), models.Alert{ID: "a", LocationID: "cabin"})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("err=%v want ErrOutOfBrokers", err)
	}
}

func TestPublishAlertCancelledContext(t *testing.T) {
	t.Parallel()

	sp := mocks.NewSyncProducer(t, mockConfig())
	p := newProducer(sp, "wildfire-alerts")
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.PublishAlert(ctx, models.Alert{ID: "a"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}
