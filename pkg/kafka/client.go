// Package kafka carries the async ingestion trigger: producers enqueue
// IngestTask messages, the consumer feeds them into the pipeline.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"finrag-go/internal/config"
	"finrag-go/pkg/database"
	"finrag-go/pkg/log"
	"finrag-go/pkg/tasks"
)

// TaskProcessor is anything able to process one ingest task. Decouples the
// consumer from the concrete pipeline.
type TaskProcessor interface {
	ProcessTask(ctx context.Context, task tasks.IngestTask) error
}

var producer *kafka.Writer

// InitProducer initialises the Kafka producer.
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka producer initialised successfully")
}

// ProduceIngestTask enqueues one ingest task.
func ProduceIngestTask(task tasks.IngestTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return producer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(task.FileName),
		Value: taskBytes,
	})
}

// StartConsumer reads ingest tasks and hands them to the processor. Failed
// tasks are retried by Kafka until the redis attempt counter reaches 3,
// after which the offset is committed and the task dropped.
func StartConsumer(cfg config.KafkaConfig, processor TaskProcessor) {
	groupID := cfg.GroupID
	if groupID == "" {
		groupID = "finrag-ingest-consumer"
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})

	log.Infof("Kafka consumer started, listening on topic '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(context.Background())
		if err != nil {
			log.Error("failed to read message from Kafka", err)
			break
		}

		var task tasks.IngestTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("failed to parse Kafka message: %v, value: %s", err, string(m.Value))
			// Malformed message; commit so it does not block the queue.
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("failed to commit malformed message: %v", err)
			}
			continue
		}

		log.Infof("processing ingest task: file=%s source=%s", task.FileName, task.Source)
		if err := processor.ProcessTask(context.Background(), task); err != nil {
			log.Errorf("ingest task failed: file=%s, error: %v", task.FileName, err)

			attemptsKey := fmt.Sprintf("kafka:attempts:%s", task.FileName)
			attempts, incErr := database.RDB.Incr(context.Background(), attemptsKey).Result()
			if incErr != nil {
				// Redis unavailable; leave the offset so Kafka retries.
				continue
			}
			_ = database.RDB.Expire(context.Background(), attemptsKey, 24*time.Hour).Err()

			if attempts >= 3 {
				log.Errorf("ingest task failed %d times, dropping: file=%s", attempts, task.FileName)
				if err := r.CommitMessages(context.Background(), m); err != nil {
					log.Errorf("failed to commit Kafka offset: %v", err)
				}
			}
		} else {
			log.Infof("ingest task succeeded: file=%s", task.FileName)
			_ = database.RDB.Del(context.Background(), fmt.Sprintf("kafka:attempts:%s", task.FileName)).Err()
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("failed to commit Kafka offset: %v", err)
			}
		}
	}

	if err := r.Close(); err != nil {
		log.Fatalf("failed to close Kafka consumer: %v", err)
	}
}
