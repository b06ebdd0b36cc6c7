package consumer

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/gateway"
	"github.com/DreamTraveler233/XinYu-IM-Backend/pkg/logger"
)

// PushConsumer 消费其他网关节点发布的推送事件，并投递给本节点的在线连接
type PushConsumer struct {
	gw     *gateway.Gateway
	nodeID string
	log    *logger.Logger
}

func NewPushConsumer(gw *gateway.Gateway, nodeID string, log *logger.Logger) *PushConsumer {
	return &PushConsumer{
		gw:     gw,
		nodeID: nodeID,
		log:    log,
	}
}

// Setup is run at the beginning of a new session, before ConsumeClaim
func (c *PushConsumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited
func (c *PushConsumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages().
func (c *PushConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var ev gateway.PushEvent
		if err := json.Unmarshal(message.Value, &ev); err != nil {
			c.log.Warn("反序列化推送事件失败", zap.Error(err))
			session.MarkMessage(message, "")
			continue
		}

		// 发布节点已完成本地推送，跳过以免重复投递
		if ev.NodeID == c.nodeID {
			session.MarkMessage(message, "")
			continue
		}

		c.gw.PushLocal(ev.UserID, ev.Event, ev.Payload, ev.AckID)
		session.MarkMessage(message, "")
	}
	return nil
}

// StartConsumer 启动消费循环；Consume 返回后自动重入以响应再均衡
func StartConsumer(ctx context.Context, brokers []string, groupID, topic string, c *PushConsumer) error {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	client, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return err
	}

	go func() {
		defer client.Close()
		for {
			if err := client.Consume(ctx, []string{topic}, c); err != nil {
				c.log.Error("消费推送事件失败", zap.Error(err))
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	return nil
}
