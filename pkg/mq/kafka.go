package mq

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/DreamTraveler233/XinYu-IM-Backend/pkg/logger"
)

// KafkaProducer 同步生产者，用于网关推送事件的跨节点分发
type KafkaProducer struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

func NewKafkaProducer(brokers []string, topic string, log *logger.Logger) (*KafkaProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("启动 Sarama 生产者失败: %w", err)
	}

	return &KafkaProducer{
		producer: producer,
		topic:    topic,
		log:      log,
	}, nil
}

// SendMessage 按 key 分区发送，同一用户的推送事件保序
func (k *KafkaProducer) SendMessage(key string, message interface{}) error {
	bytes, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(bytes),
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("发送消息到 kafka 失败: %w", err)
	}

	k.log.Debug("推送事件已发布",
		zap.String("topic", k.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

func (k *KafkaProducer) Close() error {
	return k.producer.Close()
}
