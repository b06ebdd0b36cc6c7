package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/middlewares"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/services"
)

// MessageHandler 消息处理器
type MessageHandler struct {
	messageService *services.MessageService
}

// NewMessageHandler 创建消息处理器实例
func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
	}
}

// Send 发送消息
func (h *MessageHandler) Send(c *gin.Context) {
	userID, exists := middlewares.CurrentUserID(c)
	if !exists {
		Unauthorized(c)
		return
	}

	var req services.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}

	record, err := h.messageService.SendMessage(c.Request.Context(), userID, &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, record)
}

type recordsRequest struct {
	TalkMode uint8  `json:"talk_mode" form:"talk_mode" binding:"required"`
	ToFromID uint64 `json:"to_from_id" form:"to_from_id" binding:"required"`
	Cursor   uint64 `json:"cursor" form:"cursor"`
	Limit    int    `json:"limit" form:"limit"`
	MsgType  uint16 `json:"msg_type" form:"msg_type"`
}

// Records 加载会话消息（倒序分页）
func (h *MessageHandler) Records(c *gin.Context) {
	userID, exists := middlewares.CurrentUserID(c)
	if !exists {
		Unauthorized(c)
		return
	}

	var req recordsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, err)
		return
	}

	page, err := h.messageService.LoadRecords(c.Request.Context(), userID, req.TalkMode, req.ToFromID, req.Cursor, req.Limit)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, page)
}

// HistoryRecords 按类型筛选加载历史消息
func (h *MessageHandler) HistoryRecords(c *gin.Context) {
	userID, exists := middlewares.CurrentUserID(c)
	if !exists {
		Unauthorized(c)
		return
	}

	var req recordsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, err)
		return
	}

	page, err := h.messageService.LoadHistoryRecords(c.Request.Context(), userID, req.TalkMode, req.ToFromID, req.MsgType, req.Cursor, req.Limit)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, page)
}

type forwardRecordsRequest struct {
	MsgIDs []string `json:"msg_ids" binding:"required"`
}

// ForwardRecords 加载转发消息的原始记录
func (h *MessageHandler) ForwardRecords(c *gin.Context) {
	userID, exists := middlewares.CurrentUserID(c)
	if !exists {
		Unauthorized(c)
		return
	}

	var req forwardRecordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}

	records, err := h.messageService.LoadForwardRecords(c.Request.Context(), userID, req.MsgIDs)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{"items": records})
}

type deleteMessagesRequest struct {
	TalkMode uint8    `json:"talk_mode" binding:"required"`
	ToFromID uint64   `json:"to_from_id" binding:"required"`
	MsgIDs   []string `json:"msg_ids"`
}

// Delete 按当前用户视角删除若干消息
func (h *MessageHandler) Delete(c *gin.Context) {
	userID, exists := middlewares.CurrentUserID(c)
	if !exists {
		Unauthorized(c)
		return
	}

	var req deleteMessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}

	if err := h.messageService.DeleteMessages(c.Request.Context(), userID, req.TalkMode, req.ToFromID, req.MsgIDs); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, nil)
}

type talkTargetRequest struct {
	TalkMode uint8  `json:"talk_mode" binding:"required"`
	ToFromID uint64 `json:"to_from_id" binding:"required"`
}

// DeleteAll 清空当前用户在会话中的全部消息视图
func (h *MessageHandler) DeleteAll(c *gin.Context) {
	userID, exists := middlewares.CurrentUserID(c)
	if !exists {
		Unauthorized(c)
		return
	}

	var req talkTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}

	if err := h.messageService.DeleteAllMessagesInTalk(c.Request.Context(), userID, req.TalkMode, req.ToFromID); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, nil)
}

type revokeRequest struct {
	TalkMode uint8  `json:"talk_mode" binding:"required"`
	ToFromID uint64 `json:"to_from_id" binding:"required"`
	MsgID    string `json:"msg_id" binding:"required"`
}

// Revoke 撤回消息
func (h *MessageHandler) Revoke(c *gin.Context) {
	userID, exists := middlewares.CurrentUserID(c)
	if !exists {
		Unauthorized(c)
		return
	}

	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}

	if err := h.messageService.RevokeMessage(c.Request.Context(), userID, req.TalkMode, req.ToFromID, req.MsgID); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, nil)
}
