package models

import (
	"time"
)

// 会话快照布尔位（与前端约定 1=是 2=否）
const (
	FlagYes uint8 = 1
	FlagNo  uint8 = 2
)

// TalkSession 用户侧会话快照（会话列表里的一行预览）
// (user_id, talk_id) 唯一；删除会话只做软删除，
// 后续新消息到达时恢复同一行，避免外部引用失效。
type TalkSession struct {
	ID            uint64    `gorm:"primaryKey" json:"id"`
	UserID        uint64    `gorm:"not null;uniqueIndex:uk_session_user_talk" json:"user_id"`
	TalkID        uint64    `gorm:"not null;uniqueIndex:uk_session_user_talk" json:"talk_id"`
	TalkMode      uint8     `gorm:"not null" json:"talk_mode"`
	ToFromID      uint64    `gorm:"not null" json:"to_from_id"` // 本用户视角的对端（用户/群）
	Name          string    `gorm:"size:64;default:''" json:"name"`
	Avatar        string    `gorm:"size:255;default:''" json:"avatar"`
	Remark        string    `gorm:"size:64;default:''" json:"remark"`
	IsTop         uint8     `gorm:"not null;default:2" json:"is_top"`
	IsDisturb     uint8     `gorm:"not null;default:2" json:"is_disturb"`
	IsRobot       uint8     `gorm:"not null;default:2" json:"is_robot"`
	IsDeleted     uint8     `gorm:"not null;default:2" json:"-"` // 软删除标记
	UnreadNum     uint32    `gorm:"not null;default:0" json:"unread_num"`
	LastMsgID     string    `gorm:"size:32;default:''" json:"last_msg_id"`
	LastMsgType   uint16    `gorm:"not null;default:0" json:"last_msg_type"`
	LastSenderID  uint64    `gorm:"not null;default:0" json:"last_sender_id"`
	LastMsgDigest string    `gorm:"size:255;default:''" json:"last_msg_digest"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (TalkSession) TableName() string {
	return "im_talk_session"
}
