package models

import (
	"time"
)

// 消息类型（封闭枚举，extra 中的结构由边界层校验）
const (
	MsgTypeText     uint16 = 1 // 文本
	MsgTypeImage    uint16 = 2 // 图片
	MsgTypeAudio    uint16 = 3 // 语音
	MsgTypeVideo    uint16 = 4 // 视频
	MsgTypeFile     uint16 = 5 // 文件
	MsgTypeForward  uint16 = 6 // 转发记录
	MsgTypeCard     uint16 = 7 // 名片
	MsgTypeLocation uint16 = 8 // 位置
)

// 撤回状态
const (
	MsgRevoked uint8 = 1 // 已撤回
	MsgNormal  uint8 = 2 // 正常
)

// MsgTypePreview 非文本消息在会话列表中的占位预览文案
var MsgTypePreview = map[uint16]string{
	MsgTypeImage:    "[图片]",
	MsgTypeAudio:    "[语音]",
	MsgTypeVideo:    "[视频]",
	MsgTypeFile:     "[文件]",
	MsgTypeForward:  "[转发记录]",
	MsgTypeCard:     "[名片]",
	MsgTypeLocation: "[位置]",
}

// Message 消息模型
// 写入后除撤回转换外不可变；按用户删除只写 im_message_user_delete，
// 不回写消息本体。
type Message struct {
	ID          string    `gorm:"primaryKey;size:32" json:"msg_id"` // 32位hex
	TalkID      uint64    `gorm:"not null;index:idx_msg_talk_seq" json:"talk_id"`
	Sequence    uint64    `gorm:"not null;index:idx_msg_talk_seq" json:"sequence"`
	TalkMode    uint8     `gorm:"not null" json:"talk_mode"`
	MsgType     uint16    `gorm:"not null;default:1" json:"msg_type"`
	SenderID    uint64    `gorm:"not null;index" json:"sender_id"`
	ReceiverID  uint64    `gorm:"not null;default:0" json:"receiver_id"` // 单聊对端，群聊为 0
	GroupID     uint64    `gorm:"not null;default:0" json:"group_id"`    // 群聊群ID，单聊为 0
	ContentText string    `gorm:"type:text" json:"content_text"`         // 仅文本类型
	Extra       string    `gorm:"type:text" json:"extra"`                // 非文本 JSON 负载，原样持久化
	QuoteMsgID  string    `gorm:"size:32;default:''" json:"quote_msg_id"`
	IsRevoked   uint8     `gorm:"not null;default:2" json:"is_revoked"`
	RevokeBy    uint64    `gorm:"not null;default:0" json:"revoke_by"`
	RevokeTime  int64     `gorm:"not null;default:0" json:"revoke_time"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Message) TableName() string {
	return "im_message"
}

// MessageUserDelete 按用户视角的软删除标记（幂等插入，永不回收）
type MessageUserDelete struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	MsgID     string    `gorm:"size:32;not null;uniqueIndex:uk_msg_user_del" json:"msg_id"`
	UserID    uint64    `gorm:"not null;uniqueIndex:uk_msg_user_del" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (MessageUserDelete) TableName() string {
	return "im_message_user_delete"
}

// MessageMention 消息 @ 提及映射，随消息原子写入
type MessageMention struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	MsgID     string    `gorm:"size:32;not null;uniqueIndex:uk_msg_mention" json:"msg_id"`
	UserID    uint64    `gorm:"not null;uniqueIndex:uk_msg_mention" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (MessageMention) TableName() string {
	return "im_message_mention"
}

// MessageForward 转发消息与原始消息的映射（合并转发为多行）
type MessageForward struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	MsgID       string    `gorm:"size:32;not null;index" json:"msg_id"` // 派生消息
	SrcMsgID    string    `gorm:"size:32;not null" json:"src_msg_id"`
	SrcTalkID   uint64    `gorm:"not null" json:"src_talk_id"`
	SrcSenderID uint64    `gorm:"not null" json:"src_sender_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func (MessageForward) TableName() string {
	return "im_message_forward_map"
}

// MessageRead 已读标记（幂等插入）
type MessageRead struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	MsgID     string    `gorm:"size:32;not null;uniqueIndex:uk_msg_read" json:"msg_id"`
	UserID    uint64    `gorm:"not null;uniqueIndex:uk_msg_read" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (MessageRead) TableName() string {
	return "im_message_read"
}
