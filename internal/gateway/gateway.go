package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/DreamTraveler233/XinYu-IM-Backend/config"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/presence"
	"github.com/DreamTraveler233/XinYu-IM-Backend/middleware/jwt"
	"github.com/DreamTraveler233/XinYu-IM-Backend/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventPublisher 跨节点推送出口（Kafka 生产者）；nil 表示单节点降级运行
type EventPublisher interface {
	SendMessage(key string, message interface{}) error
}

// Gateway 实时网关：连接注册表 + 推送分发。
// 推送是尽力而为的：目标用户不在线（零连接）不是错误；
// 推送失败绝不反馈给触发它的业务调用方。
type Gateway struct {
	registry *Registry
	tokens   *jwt.TokenManager
	presence presence.Presence
	cfg      *config.WebsocketConfig
	log      *logger.Logger

	nodeID    string
	publisher EventPublisher
}

func NewGateway(tokens *jwt.TokenManager, pres presence.Presence, cfg *config.WebsocketConfig, log *logger.Logger) *Gateway {
	return &Gateway{
		registry: NewRegistry(),
		tokens:   tokens,
		presence: pres,
		cfg:      cfg,
		log:      log,
	}
}

// SetPublisher 挂接跨节点事件出口（Kafka 不可用时保持单节点模式）
func (g *Gateway) SetPublisher(nodeID string, p EventPublisher) {
	g.nodeID = nodeID
	g.publisher = p
}

// Registry 暴露给消费端做本地投递
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// ServeWS 处理 WebSocket 握手：?token=...&platform=web|pc|app
// 鉴权失败发 event_error 后关闭，不登记任何连接。
func (g *Gateway) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	token := c.Query("token")
	platform := c.DefaultQuery("platform", "web")

	claims, err := g.tokens.ParseToken(token)
	if err != nil || claims.UserID == 0 {
		g.sendRaw(conn, EventError, ErrorPayload{ErrorCode: 401, ErrorMessage: "unauthorized"})
		conn.Close()
		return
	}
	uid := claims.UserID

	client := newClient(uuid.NewString(), uid, platform, conn, g.cfg.SendBufferSize)
	g.registry.Register(client)

	heartbeat := time.Duration(g.cfg.HeartbeatInterval) * time.Second
	ttl := heartbeat * 2
	if err := g.presence.SetOnline(context.Background(), uid, g.nodeID, ttl); err != nil {
		// 在线状态只是降级信息，不中断连接
		g.log.Warn("set online failed", zap.Uint64("uid", uid), zap.Error(err))
	}

	// 欢迎包
	g.pushToClient(client, EventConnect, WelcomePayload{
		UID:      uid,
		Platform: platform,
		TS:       time.Now().UnixMilli(),
	}, "")

	go client.writePump(heartbeat * 9 / 10)
	go g.readPump(client, ttl)

	g.log.Info("ws connected",
		zap.String("conn_id", client.ID),
		zap.Uint64("uid", uid),
		zap.String("platform", platform))
}

// readPump 逐帧解析上行事件直到连接断开
func (g *Gateway) readPump(client *Client, readTimeout time.Duration) {
	defer g.handleDisconnect(client)

	client.conn.SetReadLimit(g.cfg.MaxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(readTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		msgType, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				g.log.Debug("ws read error", zap.String("conn_id", client.ID), zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		client.conn.SetReadDeadline(time.Now().Add(readTimeout))
		g.handleEvent(client, data)
	}
}

// handleEvent 上行事件分发：ping/ack/echo 内置，其余接受但不处理
func (g *Gateway) handleEvent(client *Client, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return // 非JSON帧忽略
	}

	switch env.Event {
	case ClientEventPing:
		// 应用层心跳，独立于协议层 ping/pong
		g.pushToClient(client, EventPong, map[string]int64{"ts": time.Now().UnixMilli()}, "")
	case ClientEventAck:
		// 收到确认即可，暂无需其他处理
	case ClientEventEcho:
		g.pushToClient(client, EventEcho, env.Payload, "")
	default:
		// 未知事件留给后续业务扩展
		g.log.Debug("unhandled ws event", zap.String("event", env.Event))
	}
}

// handleDisconnect 断开清理：移除注册表并置离线。
// 注意：任一连接关闭都会置该用户离线，即使其它设备仍在线（与参考行为一致）。
func (g *Gateway) handleDisconnect(client *Client) {
	client.close()
	g.registry.Unregister(client.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := g.presence.SetOffline(ctx, client.UserID); err != nil {
		g.log.Warn("set offline failed", zap.Uint64("uid", client.UserID), zap.Error(err))
	}

	g.log.Info("ws disconnected",
		zap.String("conn_id", client.ID),
		zap.Uint64("uid", client.UserID))
}

// PushToUser 向用户全部在线连接推送事件，并转发给其他网关节点。
// 零接收方是合法结果（用户离线）。
func (g *Gateway) PushToUser(userID uint64, event string, payload any) {
	g.pushWithAck(userID, event, payload, "")
}

func (g *Gateway) pushWithAck(userID uint64, event string, payload any, ackID string) {
	g.PushLocal(userID, event, payload, ackID)

	if g.publisher == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		g.log.Warn("marshal push event failed", zap.String("event", event), zap.Error(err))
		return
	}
	ev := PushEvent{NodeID: g.nodeID, UserID: userID, Event: event, Payload: raw, AckID: ackID}
	if err := g.publisher.SendMessage(formatUserKey(userID), ev); err != nil {
		// 跨节点转发失败只影响其他节点的在线端，降级为本地推送
		g.log.Warn("publish push event failed", zap.String("event", event), zap.Error(err))
	}
}

// PushLocal 只向本节点连接推送（消费 Kafka 事件时使用，避免回环）
func (g *Gateway) PushLocal(userID uint64, event string, payload any, ackID string) {
	clients := g.registry.Collect(userID)
	if len(clients) == 0 {
		return
	}
	frame, err := EncodeEvent(event, payload, ackID)
	if err != nil {
		g.log.Warn("encode event failed", zap.String("event", event), zap.Error(err))
		return
	}
	for _, c := range clients {
		if !c.Send(frame) {
			// 发送缓冲满：客户端长期不读，淘汰连接
			g.log.Warn("send buffer full, dropping connection",
				zap.String("conn_id", c.ID), zap.Uint64("uid", c.UserID))
			c.close()
		}
	}
}

// PushMessage 推送 im.message：
// 单聊发给对端和发送者（多端自同步）；群聊暂只发给发送者，
// 群成员级广播尚未实现，留在这一个出口里补齐。
func (g *Gateway) PushMessage(talkMode uint8, toFromID, fromID uint64, body any) {
	payload := ImMessagePayload{
		ToFromID: toFromID,
		FromID:   fromID,
		TalkMode: talkMode,
		Body:     body,
	}
	if talkMode == 1 {
		g.PushToUser(toFromID, EventImMessage, payload)
		g.PushToUser(fromID, EventImMessage, payload)
	} else {
		g.PushToUser(fromID, EventImMessage, payload)
	}
}

// sendRaw 在连接尚未登记前直接写一帧（握手失败路径）
func (g *Gateway) sendRaw(conn *websocket.Conn, event string, payload any) {
	frame, err := EncodeEvent(event, payload, "")
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.TextMessage, frame)
}

// pushToClient 只向单个连接推送一帧
func (g *Gateway) pushToClient(client *Client, event string, payload any, ackID string) {
	frame, err := EncodeEvent(event, payload, ackID)
	if err != nil {
		g.log.Warn("encode event failed", zap.String("event", event), zap.Error(err))
		return
	}
	if !client.Send(frame) {
		g.log.Warn("send buffer full, dropping connection",
			zap.String("conn_id", client.ID), zap.Uint64("uid", client.UserID))
		client.close()
	}
}

func formatUserKey(userID uint64) string {
	return "uid:" + strconv.FormatUint(userID, 10)
}
