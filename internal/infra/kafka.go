// README: Kafka writer initialization for the notification topic.
package infra

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

func NewKafkaWriter(brokers, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(brokers, ",")...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
}
