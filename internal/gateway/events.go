package gateway

import (
	"encoding/json"
)

// 下行事件名（与前端约定的封装：{"event":...,"payload":{...},"ackid":...}）
const (
	EventConnect       = "connect"
	EventPong          = "pong"
	EventEcho          = "echo"
	EventError         = "event_error"
	EventImMessage     = "im.message"
	EventSessionUpdate = "im.session.update"
	EventSessionReload = "im.session.reload"
	EventMsgRevoke     = "im.message.revoke"
)

// 上行内置事件名
const (
	ClientEventPing = "ping"
	ClientEventAck  = "ack"
	ClientEventEcho = "echo"
)

// Envelope 上下行统一封装
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	AckID   string          `json:"ackid,omitempty"`
}

// EncodeEvent 序列化一帧下行事件；payload 为 nil 时发空对象
func EncodeEvent(event string, payload any, ackID string) ([]byte, error) {
	raw := json.RawMessage("{}")
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Envelope{Event: event, Payload: raw, AckID: ackID})
}

// ErrorPayload event_error 事件负载
type ErrorPayload struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// WelcomePayload connect 欢迎包负载
type WelcomePayload struct {
	UID      uint64 `json:"uid"`
	Platform string `json:"platform"`
	TS       int64  `json:"ts"`
}

// ImMessagePayload im.message 事件负载，body 即落库后的消息记录
type ImMessagePayload struct {
	ToFromID uint64 `json:"to_from_id"`
	FromID   uint64 `json:"from_id"`
	TalkMode uint8  `json:"talk_mode"`
	Body     any    `json:"body"`
}

// SessionUpdatePayload im.session.update 事件负载
type SessionUpdatePayload struct {
	TalkMode  uint8   `json:"talk_mode"`
	ToFromID  uint64  `json:"to_from_id"`
	SenderID  uint64  `json:"sender_id,omitempty"`
	MsgText   *string `json:"msg_text"` // nil 表示会话预览被清空
	UpdatedAt int64   `json:"updated_at"`
}

// RevokePayload im.message.revoke 事件负载
type RevokePayload struct {
	TalkMode uint8  `json:"talk_mode"`
	ToFromID uint64 `json:"to_from_id"`
	FromID   uint64 `json:"from_id"`
	MsgID    string `json:"msg_id"`
}

// PushEvent 经 Kafka 跨节点分发的推送事件；
// node_id 用于消费侧跳过本节点已完成的本地推送
type PushEvent struct {
	NodeID  string          `json:"node_id"`
	UserID  uint64          `json:"user_id"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	AckID   string          `json:"ackid,omitempty"`
}
