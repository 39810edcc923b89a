// README: Kafka sync producer for post-commit inventory events.
package infra

import (
	"fmt"

	"github.com/IBM/sarama"
)

// NewSyncProducer returns an idempotent producer that waits for all in-sync replicas.
func NewSyncProducer(brokers []string, cfg *sarama.Config) (sarama.SyncProducer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	cfg.Net.MaxOpenRequests = 1
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}
