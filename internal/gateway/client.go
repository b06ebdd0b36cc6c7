package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
)

// Client 代表一个已鉴权的 WebSocket 连接（一个用户可有多个）
type Client struct {
	ID       string // 连接唯一ID（uuid）
	UserID   uint64
	Platform string // web|pc|app

	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(id string, userID uint64, platform string, conn *websocket.Conn, sendBuffer int) *Client {
	return &Client{
		ID:       id,
		UserID:   userID,
		Platform: platform,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
}

// Send 非阻塞投递一帧下行数据。
// 发送缓冲满说明客户端长期不读，返回 false 交由网关淘汰该连接。
func (c *Client) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// close 幂等关闭；唤醒 writePump 退出并断开底层连接
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// writePump 把 send 通道中的帧写到连接，并维持协议层心跳
func (c *Client) writePump(pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
			// 顺带清空积压，减少系统调用
			n := len(c.send)
			for i := 0; i < n; i++ {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
