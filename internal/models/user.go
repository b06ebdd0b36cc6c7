package models

import (
	"time"
)

// User 用户档案（本核心只读：昵称/头像用于消息与会话渲染）
type User struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	Nickname  string    `gorm:"size:64;not null" json:"nickname"`
	Avatar    string    `gorm:"size:255;default:''" json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
}

func (User) TableName() string {
	return "im_user"
}

// Contact 联系人关系，仅用于读取备注以装饰会话名称
type Contact struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	OwnerID   uint64    `gorm:"not null;uniqueIndex:uk_contact_owner_target" json:"owner_id"`
	TargetID  uint64    `gorm:"not null;uniqueIndex:uk_contact_owner_target" json:"target_id"`
	Remark    string    `gorm:"size:64;default:''" json:"remark"`
	CreatedAt time.Time `json:"created_at"`
}

func (Contact) TableName() string {
	return "im_contact"
}
