package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// MsgIDLength 消息ID固定长度（32位小写hex）
const MsgIDLength = 32

// NewMsgID 服务端生成消息ID（前端未携带时使用）
func NewMsgID() string {
	buf := make([]byte, MsgIDLength/2)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand 不可用属于环境级故障
	}
	return hex.EncodeToString(buf)
}

// ValidateMsgID 校验前端传入的消息ID形态
func ValidateMsgID(id string) bool {
	if len(id) != MsgIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
