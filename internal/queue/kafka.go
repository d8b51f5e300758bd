package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	ckafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const pollTimeout = 500 * time.Millisecond

// Kafka routes jobs through a Kafka topic so analysis workers can run as
// separate processes from the API server.
type Kafka struct {
	producer *ckafka.Producer
	consumer *ckafka.Consumer
	topic    string
}

// NewKafka connects a producer and consumer to the given brokers
// (comma-separated host:port list). The consumer joins group and reads
// from the earliest unconsumed offset.
func NewKafka(servers, topic, group string) (*Kafka, error) {
	producer, err := ckafka.NewProducer(&ckafka.ConfigMap{
		"bootstrap.servers": servers,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}

	consumer, err := ckafka.NewConsumer(&ckafka.ConfigMap{
		"bootstrap.servers": servers,
		"group.id":          group,
		"auto.offset.reset": "earliest",
	})
	if err != nil {
		producer.Close()
		return nil, fmt.Errorf("creating kafka consumer: %w", err)
	}

	return &Kafka{producer: producer, consumer: consumer, topic: topic}, nil
}

// Enqueue publishes the job and waits for broker acknowledgement.
func (k *Kafka) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job: %w", err)
	}

	deliveryChan := make(chan ckafka.Event, 1)
	err = k.producer.Produce(&ckafka.Message{
		TopicPartition: ckafka.TopicPartition{
			Topic:     &k.topic,
			Partition: ckafka.PartitionAny,
		},
		Key:   []byte(job.Owner + "/" + job.Name),
		Value: payload,
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("producing job: %w", err)
	}

	select {
	case e := <-deliveryChan:
		m := e.(*ckafka.Message)
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("delivering job: %w", m.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume subscribes to the topic and processes messages until ctx is
// cancelled. Redelivery on handler failure is left to Kafka's consumer
// group semantics; malformed messages are logged and skipped.
func (k *Kafka) Consume(ctx context.Context, handler Handler) error {
	if err := k.consumer.Subscribe(k.topic, nil); err != nil {
		return fmt.Errorf("subscribing to %s: %w", k.topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := k.consumer.ReadMessage(pollTimeout)
		if err != nil {
			continue
		}

		var job Job
		if err := json.Unmarshal(msg.Value, &job); err != nil {
			log.Printf("queue: dropping malformed message at %v: %v", msg.TopicPartition.Offset, err)
			continue
		}

		if err := handler(ctx, job); err != nil {
			log.Printf("queue: job %s for %s/%s failed: %v", job.AnalysisID, job.Owner, job.Name, err)
		}
	}
}

func (k *Kafka) Close() error {
	k.producer.Flush(5000)
	k.producer.Close()
	return k.consumer.Close()
}
