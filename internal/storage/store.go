package storage

import (
	"context"
	"time"

	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/models"
)

// LastMsg 会话快照的最后一条消息字段集合
type LastMsg struct {
	MsgID    string
	MsgType  uint16
	SenderID uint64
	Digest   string
}

// TalkRepo 会话定位与序列分配
type TalkRepo interface {
	// FindOrCreateSingle 规范化 (min,max) 后查找或创建单聊会话。
	// 依赖唯一约束 + 冲突重读，并发首次互发收敛到同一 talk_id。
	FindOrCreateSingle(ctx context.Context, userA, userB uint64) (uint64, error)
	FindOrCreateGroup(ctx context.Context, groupID uint64) (uint64, error)
	// 只读变体：会话不存在返回 imerr.NotFound，绝不产生副作用
	GetSingleTalkID(ctx context.Context, userA, userB uint64) (uint64, error)
	GetGroupTalkID(ctx context.Context, groupID uint64) (uint64, error)
	// NextSequence 原子自增并返回，必须运行在调用方事务内
	NextSequence(ctx context.Context, talkID uint64) (uint64, error)
}

// MessageRepo 消息及其附属表
type MessageRepo interface {
	Create(ctx context.Context, m *models.Message) error
	GetByID(ctx context.Context, msgID string) (*models.Message, error)
	GetByIDs(ctx context.Context, msgIDs []string) ([]models.Message, error)
	Revoke(ctx context.Context, msgID string, by uint64, at time.Time) error

	// ListRecentDescFiltered 按 sequence 倒序取一页，过滤 viewer 已删除的消息；
	// anchorSeq=0 表示从最新开始，否则只取 sequence < anchorSeq；
	// msgType=0 表示不按类型过滤。已撤回消息保留在结果中（前端置灰显示）
	ListRecentDescFiltered(ctx context.Context, talkID, anchorSeq uint64, limit int, viewerID uint64, msgType uint16) ([]models.Message, error)

	// LatestPreviewCandidate 取该用户视角下最新的可作会话预览的消息：
	// 排除已撤回与该用户已删除的消息；无候选时返回 (nil, nil)
	LatestPreviewCandidate(ctx context.Context, talkID, viewerID uint64) (*models.Message, error)

	MarkUserDelete(ctx context.Context, msgID string, userID uint64) error
	MarkAllUserDeleteInTalk(ctx context.Context, talkID, userID uint64) error

	AddMentions(ctx context.Context, msgID string, userIDs []uint64) error
	GetMentions(ctx context.Context, msgID string) ([]uint64, error)

	AddForwardSources(ctx context.Context, rows []models.MessageForward) error

	MarkRead(ctx context.Context, msgID string, userID uint64) error
	MarkReadByTalk(ctx context.Context, talkID, userID uint64) error
}

// SessionRepo 会话快照维护
type SessionRepo interface {
	Get(ctx context.Context, userID, talkID uint64) (*models.TalkSession, error)
	// CreateOrRestore 不存在则插入；被软删除则恢复同一行（保持行标识）
	CreateOrRestore(ctx context.Context, s *models.TalkSession) error
	// BumpOnNewMessage 新消息落库后刷新本会话所有活跃快照的 last_msg_* 与
	// updated_at，并为除发送者外的用户 unread_num+1（单条语句级逻辑步骤）
	BumpOnNewMessage(ctx context.Context, talkID, senderID uint64, last LastMsg) error
	// UpdateLastMsg 重建指定用户的最后消息字段；last 为 nil 时清空
	UpdateLastMsg(ctx context.Context, userID, talkID uint64, last *LastMsg) error

	ListUsersByLastMsg(ctx context.Context, talkID uint64, msgID string) ([]uint64, error)
	ListUsersByTalkID(ctx context.Context, talkID uint64) ([]uint64, error)
	ListByUserID(ctx context.Context, userID uint64) ([]models.TalkSession, error)

	ClearUnread(ctx context.Context, userID, talkID uint64) error
	SetTop(ctx context.Context, userID, talkID uint64, top bool) error
	SetDisturb(ctx context.Context, userID, talkID uint64, disturb bool) error
	SoftDelete(ctx context.Context, userID, talkID uint64) error
}

// UserRepo 联系人/档案协作方（只读）
type UserRepo interface {
	GetUserSimple(ctx context.Context, userID uint64) (*models.User, error)
	// GetContactRemark 无联系人关系时返回空串而非错误
	GetContactRemark(ctx context.Context, ownerID, targetID uint64) (string, error)
}

// Store 存储适配器：聚合各仓储并提供单写事务域。
// Transaction 内通过 tx 访问的仓储共享同一个连接，commit 是
// 所有写入唯一的持久化点。
type Store interface {
	Talks() TalkRepo
	Messages() MessageRepo
	Sessions() SessionRepo
	Users() UserRepo
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
