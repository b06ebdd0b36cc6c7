package services

// Pusher 下行推送出口。实现方（网关）保证：
// 推送是尽力而为的，零在线接收方不是错误，失败不回传给业务方。
type Pusher interface {
	PushToUser(userID uint64, event string, payload any)
	PushMessage(talkMode uint8, toFromID, fromID uint64, body any)
}

// NopPusher 单测与降级场景下的空实现
type NopPusher struct{}

func (NopPusher) PushToUser(userID uint64, event string, payload any) {}

func (NopPusher) PushMessage(talkMode uint8, toFromID, fromID uint64, body any) {}
