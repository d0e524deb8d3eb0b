package kafka

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/Capitan-Parrot/wildfire-live/internal/models"
	"github.com/IBM/sarama"
)

type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32               { return nil }
func (s *fakeSession) MemberID() string                         { return "member-1" }
func (s *fakeSession) GenerationID() int32                      { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) Commit()                                  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context                 { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, msg.Offset)
	s.mu.Unlock()
}

func (s *fakeSession) markedOffsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.marked...)
}

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return "wildfire-watch-events" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func message(offset int64, value string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: "wildfire-watch-events", Offset: offset, Value: []byte(value)}
}

func TestConsumeClaimMarksHandledAndMalformed(t *testing.T) {
	t.Parallel()

	var handled []string
	h := &consumerGroupHandler{
		handle: func(_ context.Context, event models.WatchEvent) error {
			handled = append(handled, event.LocationID)
			if event.LocationID == "broken" {
				return errors.New("db down")
			}
			return nil
		},
		closed: make(chan struct{}),
	}

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 4)}
	claim.messages <- message(0, `{not json`)
	claim.messages <- message(1, `{"action":"created","location_id":"broken"}`)
	claim.messages <- message(2, `{"action":"deleted","location_id":"cabin","timestamp":"2025-08-01T12:00:00Z"}`)
	close(claim.messages)

	sess := &fakeSession{ctx: context.Background()}
	if err := h.ConsumeClaim(sess, claim); err != nil {
		t.Fatalf("ConsumeClaim error: %v", err)
	}

	// битое сообщение подтверждается, неудачная обработка - нет
	if got, want := sess.markedOffsets(), []int64{0, 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("marked=%v want %v", got, want)
	}
	if want := []string{"broken", "cabin"}; !reflect.DeepEqual(handled, want) {
		t.Fatalf("handled=%v want %v", handled, want)
	}
}

func TestConsumeClaimStopsOnClose(t *testing.T) {
	t.Parallel()

	closed := make(chan struct{})
	h := &consumerGroupHandler{
		handle: func(context.Context, models.WatchEvent) error { return nil },
		closed: closed,
	}
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage)}
	sess := &fakeSession{ctx: context.Background()}

	done := make(chan error, 1)
	go func() { done <- h.ConsumeClaim(sess, claim) }()
	close(closed)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ConsumeClaim error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("ConsumeClaim did not stop after close")
	}
	if got := sess.markedOffsets(); len(got) != 0 {
		t.Fatalf("marked=%v want none", got)
	}
}

func TestConsumeClaimStopsOnSessionEnd(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	h := &consumerGroupHandler{
		handle: func(context.Context, models.WatchEvent) error { return nil },
		closed: make(chan struct{}),
	}
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage)}

	done := make(chan error, 1)
	go func() { done <- h.ConsumeClaim(&fakeSession{ctx: ctx}, claim) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ConsumeClaim error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("ConsumeClaim did not stop after session end")
	}
}
