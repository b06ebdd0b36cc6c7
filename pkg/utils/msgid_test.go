package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMsgID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewMsgID()
		assert.Len(t, id, MsgIDLength)
		assert.True(t, ValidateMsgID(id))
		assert.False(t, seen[id], "ids must not repeat")
		seen[id] = true
	}
}

func TestValidateMsgID(t *testing.T) {
	assert.True(t, ValidateMsgID("0123456789abcdef0123456789abcdef"))

	assert.False(t, ValidateMsgID(""))
	assert.False(t, ValidateMsgID("short"))
	assert.False(t, ValidateMsgID(strings.Repeat("a", MsgIDLength+1)))
	// uppercase hex and other characters are rejected
	assert.False(t, ValidateMsgID("0123456789ABCDEF0123456789ABCDEF"))
	assert.False(t, ValidateMsgID("0123456789abcdeg0123456789abcdef"))
	assert.False(t, ValidateMsgID(strings.Repeat("-", MsgIDLength)))
}
