package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/middlewares"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/services"
)

// TalkHandler 会话处理器
type TalkHandler struct {
	talkService *services.TalkService
}

// NewTalkHandler 创建会话处理器实例
func NewTalkHandler(talkService *services.TalkService) *TalkHandler {
	return &TalkHandler{
		talkService: talkService,
	}
}

// SessionList 会话列表
func (h *TalkHandler) SessionList(c *gin.Context) {
	userID, exists := middlewares.CurrentUserID(c)
	if !exists {
		Unauthorized(c)
		return
	}

	items, err := h.talkService.SessionList(c.Request.Context(), userID)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{"items": items})
}

// SessionCreate 创建（或恢复）会话
func (h *TalkHandler) SessionCreate(c *gin.Context) {
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

	item, err := h.talkService.OpenSession(c.Request.Context(), userID, req.TalkMode, req.ToFromID)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, item)
}

// SessionDelete 从会话列表移除会话
func (h *TalkHandler) SessionDelete(c *gin.Context) {
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

	if err := h.talkService.RemoveSession(c.Request.Context(), userID, req.TalkMode, req.ToFromID); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, nil)
}

type sessionActionRequest struct {
	TalkMode uint8  `json:"talk_mode" binding:"required"`
	ToFromID uint64 `json:"to_from_id" binding:"required"`
	Action   uint8  `json:"action" binding:"required"`
}

// SessionTop 置顶/取消置顶会话
func (h *TalkHandler) SessionTop(c *gin.Context) {
	userID, exists := middlewares.CurrentUserID(c)
	if !exists {
		Unauthorized(c)
		return
	}

	var req sessionActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}

	if err := h.talkService.SetTop(c.Request.Context(), userID, req.TalkMode, req.ToFromID, req.Action); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, nil)
}

// SessionDisturb 开启/关闭免打扰
func (h *TalkHandler) SessionDisturb(c *gin.Context) {
	userID, exists := middlewares.CurrentUserID(c)
	if !exists {
		Unauthorized(c)
		return
	}

	var req sessionActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}

	if err := h.talkService.SetDisturb(c.Request.Context(), userID, req.TalkMode, req.ToFromID, req.Action); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, nil)
}

// SessionClearUnread 清除会话未读数
func (h *TalkHandler) SessionClearUnread(c *gin.Context) {
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

	if err := h.talkService.ClearUnread(c.Request.Context(), userID, req.TalkMode, req.ToFromID); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, nil)
}
