// Package predlog publishes an audit record for every completed prediction.
package predlog

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	kafka "github.com/segmentio/kafka-go"

	"suiml.io/suiml/metrics"
	"suiml.io/suiml/quant"
)

// Record is one prediction outcome.
type Record struct {
	ID          uuid.UUID   `json:"id"`
	ModelID     string      `json:"model_id"`
	Digest      string      `json:"digest"`
	Sender      string      `json:"sender"`
	ArgmaxIndex uint64      `json:"argmax_idx"`
	Magnitudes  []uint64    `json:"output_magnitude"`
	Signs       quant.Signs `json:"output_sign"`
	Calls       int         `json:"calls"`
	GasUsed     uint64      `json:"gas_used"`
	Time        time.Time   `json:"time"`
}

// NewRecord stamps a fresh id and the current time.
func NewRecord(modelID, digest string) Record {
	return Record{ID: uuid.New(), ModelID: modelID, Digest: digest, Time: time.Now().UTC()}
}

// Publisher delivers records. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, r Record) error
	Close() error
}

// Nop discards records.
type Nop struct{}

func (Nop) Publish(context.Context, Record) error { return nil }
func (Nop) Close() error                          { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes JSON records keyed by model id.
type KafkaPublisher struct {
	w     messageWriter
	topic string
}

// NewKafka returns an async writer for topic on the comma-separated brokers.
func NewKafka(brokers, topic string) *KafkaPublisher {
	var addrs []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Error().Err(err).Int("messages", len(msgs)).Str("topic", topic).Msg("prediction log delivery failed")
				metrics.Count(metrics.PredLogError, int64(len(msgs)), []string{metrics.Tag("error-type", "delivery")})
			}
		},
	}
	log.Info().Strs("brokers", addrs).Str("topic", topic).Msg("prediction log writer initialised")
	return &KafkaPublisher{w: w, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		metrics.Count(metrics.PredLogError, 1, []string{metrics.Tag("error-type", "marshal")})
		return err
	}
	msg := kafka.Message{Key: []byte(r.ModelID), Value: data, Time: r.Time}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		metrics.Count(metrics.PredLogError, 1, []string{metrics.Tag("error-type", "write")})
		return err
	}
	metrics.Count(metrics.PredLogSent, 1, []string{metrics.Tag(metrics.TagModelID, r.ModelID)})
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// New returns a Kafka publisher, or Nop when brokers or topic is empty.
func New(brokers, topic string) Publisher {
	if strings.TrimSpace(brokers) == "" || topic == "" {
		log.Info().Msg("kafka not configured, prediction log disabled")
		return Nop{}
	}
	return NewKafka(brokers, topic)
}
