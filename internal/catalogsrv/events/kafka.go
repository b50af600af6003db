package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const forwarderBuffer = 256

// messageWriter is the part of kafka.Writer the forwarder uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaForwarder relays bus events to a Kafka topic as JSON. The message
// key is the tenant id so events of one tenant stay ordered.
type KafkaForwarder struct {
	bus    *Bus
	writer messageWriter
	topic  string

	wg   sync.WaitGroup
	stop func()
}

// NewKafkaForwarder returns a forwarder writing to topic on brokers.
func NewKafkaForwarder(bus *Bus, brokers []string, topic string) *KafkaForwarder {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            3,
		WriteBackoffMin:        100 * time.Millisecond,
		WriteBackoffMax:        time.Second,
	}
	return newKafkaForwarder(bus, w, topic)
}

func newKafkaForwarder(bus *Bus, w messageWriter, topic string) *KafkaForwarder {
	return &KafkaForwarder{bus: bus, writer: w, topic: topic}
}

// Start subscribes to every service topic and forwards in a goroutine
// until Stop is called or ctx ends.
func (f *KafkaForwarder) Start(ctx context.Context) {
	ch, unsubscribe := f.bus.Subscribe(TopicAllServices, forwarderBuffer)
	f.stop = unsubscribe
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				f.forward(ctx, msg)
			}
		}
	}()
	log.Ctx(ctx).Info().Str("topic", f.topic).Msg("forwarding catalog events to kafka")
}

func (f *KafkaForwarder) forward(ctx context.Context, msg Message) {
	ev, ok := msg.Data.(Event)
	if !ok {
		return
	}
	value, err := json.Marshal(ev)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("topic", msg.Topic).Msg("failed to encode event")
		return
	}
	err = f.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.TenantID.CacheLabel()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(ev.Type)},
		},
	})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("topic", msg.Topic).Msg("failed to forward event to kafka")
	}
}

// Stop ends the subscription, waits for the forwarding goroutine and
// closes the writer.
func (f *KafkaForwarder) Stop() error {
	if f.stop != nil {
		f.stop()
	}
	f.wg.Wait()
	return f.writer.Close()
}
