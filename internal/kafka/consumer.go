package kafka

import (
	"context"
	"log"
	"time"

	"github.com/Capitan-Parrot/wildfire-live/internal/models"
	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

// WatchEventHandler обрабатывает событие; при ошибке сообщение не подтверждается
type WatchEventHandler func(ctx context.Context, event models.WatchEvent) error

// Consumer читает события изменения точек наблюдения
type Consumer struct {
	group  sarama.ConsumerGroup
	topic  string
	closed chan struct{}
}

// NewConsumer создаёт и возвращает новый Consumer
func NewConsumer(brokers []string, groupID, topic string) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		group:  group,
		topic:  topic,
		closed: make(chan struct{}),
	}, nil
}

// StartListening запускает асинхронное потребление сообщений
func (c *Consumer) StartListening(ctx context.Context, handle WatchEventHandler) {
	handler := &consumerGroupHandler{
		handle: handle,
		closed: c.closed,
	}

	go func() {
		retryDelay := time.Second * 5
		for {
			select {
			case <-ctx.Done():
				log.Println("Consumer: context cancelled, stopping")
				return
			case <-c.closed:
				return
			default:
				log.Println("Consumer: starting consumption cycle")
				err := c.group.Consume(ctx, []string{c.topic}, handler)
				if err != nil {
					log.Printf("Consume error: %v, retrying in %v", err, retryDelay)
					select {
					case <-ctx.Done():
						return
					case <-time.After(retryDelay):
					}
					continue
				}

				if ctx.Err() != nil {
					return
				}
			}
		}
	}()
}

// Close останавливает потребитель и освобождает ресурсы
func (c *Consumer) Close() error {
	close(c.closed)
	return c.group.Close()
}

// consumerGroupHandler реализует интерфейс sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	handle WatchEventHandler
	closed <-chan struct{}
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.process(sess, msg)
		case <-sess.Context().Done():
			return nil
		case <-h.closed:
			return nil
		}
	}
}

func (h *consumerGroupHandler) process(sess sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage) {
	var event models.WatchEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.Printf("Consumer: invalid watch event at offset %d: %v", msg.Offset, err)
		// битое сообщение повторно читать бессмысленно
		sess.MarkMessage(msg, "")
		return
	}

	if err := h.handle(sess.Context(), event); err != nil {
		log.Printf("Consumer: failed to handle watch event %s/%s: %v", event.Action, event.LocationID, err)
		return
	}

	// Подтверждаем сообщение только после успешной обработки
	sess.MarkMessage(msg, "")
}
