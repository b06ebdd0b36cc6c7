package models

import (
	"time"
)

// 会话类型
const (
	TalkModeSingle uint8 = 1 // 单聊
	TalkModeGroup  uint8 = 2 // 群聊
)

// Talk 会话模型
// 单聊：参与者按 (min, max) 规范化存储，保证 A->B 与 B->A 解析到同一行；
// 群聊：以 group_id 派生，每个群唯一。
// 复合唯一索引同时覆盖两种模式（单聊 group_id 恒为 0，群聊 min/max 恒为 0）。
type Talk struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	TalkMode  uint8     `gorm:"not null;uniqueIndex:uk_talk_key" json:"talk_mode"`
	MinUserID uint64    `gorm:"not null;default:0;uniqueIndex:uk_talk_key" json:"min_user_id"`
	MaxUserID uint64    `gorm:"not null;default:0;uniqueIndex:uk_talk_key" json:"max_user_id"`
	GroupID   uint64    `gorm:"not null;default:0;uniqueIndex:uk_talk_key" json:"group_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Talk) TableName() string {
	return "im_talk"
}

// TalkSequence 每个会话一行的单调序列计数器，从 1 开始发号
type TalkSequence struct {
	TalkID    uint64    `gorm:"primaryKey" json:"talk_id"`
	Value     uint64    `gorm:"not null;default:0" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TalkSequence) TableName() string {
	return "im_talk_sequence"
}
