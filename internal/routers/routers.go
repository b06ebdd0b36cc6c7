package routers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/DreamTraveler233/XinYu-IM-Backend/config"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/gateway"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/handlers"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/middlewares"
	"github.com/DreamTraveler233/XinYu-IM-Backend/middleware/jwt"
	pkgmiddlewares "github.com/DreamTraveler233/XinYu-IM-Backend/pkg/middlewares"
)

// SetupRoutes 设置所有路由
func SetupRoutes(r *gin.Engine, cfg *config.Config,
	tokens *jwt.TokenManager,
	messageHandler *handlers.MessageHandler,
	talkHandler *handlers.TalkHandler,
	gw *gateway.Gateway,
) {
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsCfg))

	// WebSocket 路由（握手自行鉴权，不经过限流中间件）
	r.GET("/wss/default.io", gw.ServeWS)

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"Status": "OK",
		})
	})

	// 全局限流与并发上限（防止 QPS 过高导致雪崩）
	r.Use(pkgmiddlewares.RateLimitMiddleware(2 * time.Second))
	r.Use(pkgmiddlewares.MaxConcurrencyMiddleware(cfg.RateLimit.MaxConcurrency))

	RegisterMessageRoutes(r, tokens, messageHandler)
	RegisterTalkRoutes(r, tokens, talkHandler)
}

// MessageHandler 接口定义
func RegisterMessageRoutes(r *gin.Engine, tokens *jwt.TokenManager, h *handlers.MessageHandler) {
	group := r.Group("/api/v1/message")
	group.Use(middlewares.AuthMiddleware(tokens))
	{
		group.POST("/send", h.Send)                      // 发送消息
		group.GET("/records", h.Records)                 // 会话消息分页
		group.GET("/history-records", h.HistoryRecords)  // 按类型筛选历史消息
		group.POST("/forward-records", h.ForwardRecords) // 转发消息原始记录
		group.POST("/delete", h.Delete)                  // 按用户视角删除
		group.POST("/delete-all", h.DeleteAll)           // 清空会话消息视图
		group.POST("/revoke", h.Revoke)                  // 撤回消息
	}
}

// TalkHandler 接口定义
func RegisterTalkRoutes(r *gin.Engine, tokens *jwt.TokenManager, h *handlers.TalkHandler) {
	group := r.Group("/api/v1/talk")
	group.Use(middlewares.AuthMiddleware(tokens))
	{
		group.GET("/session-list", h.SessionList)                     // 会话列表
		group.POST("/session-create", h.SessionCreate)                // 创建/恢复会话
		group.POST("/session-delete", h.SessionDelete)                // 移除会话
		group.POST("/session-top", h.SessionTop)                      // 置顶
		group.POST("/session-disturb", h.SessionDisturb)              // 免打扰
		group.POST("/session-clear-unread-num", h.SessionClearUnread) // 未读清零
	}
}
