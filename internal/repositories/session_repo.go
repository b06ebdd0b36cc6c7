package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/imerr"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/models"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/storage"
)

// SessionRepository 会话快照仓储
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Get(ctx context.Context, userID, talkID uint64) (*models.TalkSession, error) {
	var s models.TalkSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND talk_id = ?", userID, talkID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, imerr.NotFound("会话快照不存在")
	}
	if err != nil {
		return nil, imerr.Storage("查询会话快照失败", err)
	}
	return &s, nil
}

// CreateOrRestore 不存在则创建；存在（含被软删除的行）则恢复并刷新展示字段。
// 恢复复用原行，(user_id, talk_id) 的外部引用不会悬空。
func (r *SessionRepository) CreateOrRestore(ctx context.Context, s *models.TalkSession) error {
	var existing models.TalkSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND talk_id = ?", s.UserID, s.TalkID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if s.IsTop == 0 {
			s.IsTop = models.FlagNo
		}
		if s.IsDisturb == 0 {
			s.IsDisturb = models.FlagNo
		}
		if s.IsRobot == 0 {
			s.IsRobot = models.FlagNo
		}
		s.IsDeleted = models.FlagNo
		if cerr := r.db.WithContext(ctx).Create(s).Error; cerr != nil {
			if errors.Is(cerr, gorm.ErrDuplicatedKey) {
				// 并发创建，视为已存在
				return nil
			}
			return imerr.Storage("创建会话快照失败", cerr)
		}
		return nil
	}
	if err != nil {
		return imerr.Storage("查询会话快照失败", err)
	}

	updates := map[string]any{"is_deleted": models.FlagNo}
	if s.Name != "" {
		updates["name"] = s.Name
	}
	if s.Avatar != "" {
		updates["avatar"] = s.Avatar
	}
	if s.Remark != "" {
		updates["remark"] = s.Remark
	}
	if uerr := r.db.WithContext(ctx).Model(&models.TalkSession{}).
		Where("id = ?", existing.ID).
		Updates(updates).Error; uerr != nil {
		return imerr.Storage("恢复会话快照失败", uerr)
	}
	return nil
}

// BumpOnNewMessage 单条 UPDATE 刷新会话内所有活跃快照：
// last_msg_* 与 updated_at 全量更新，发送者以外的用户未读数 +1
func (r *SessionRepository) BumpOnNewMessage(ctx context.Context, talkID, senderID uint64, last storage.LastMsg) error {
	err := r.db.WithContext(ctx).Exec(
		`UPDATE im_talk_session
		 SET last_msg_id = ?, last_msg_type = ?, last_sender_id = ?, last_msg_digest = ?,
		     unread_num = unread_num + CASE WHEN user_id = ? THEN 0 ELSE 1 END,
		     updated_at = NOW()
		 WHERE talk_id = ? AND is_deleted = ?`,
		last.MsgID, last.MsgType, last.SenderID, last.Digest,
		senderID, talkID, models.FlagNo).Error
	if err != nil {
		return imerr.Storage("更新会话摘要失败", err)
	}
	return nil
}

// UpdateLastMsg 重建单个用户的最后消息字段；last 为 nil 时清空。
// 撤回/删除路径只动 last_msg_*，未读数不受影响。
func (r *SessionRepository) UpdateLastMsg(ctx context.Context, userID, talkID uint64, last *storage.LastMsg) error {
	updates := map[string]any{
		"last_msg_id":     "",
		"last_msg_type":   0,
		"last_sender_id":  0,
		"last_msg_digest": "",
	}
	if last != nil {
		updates["last_msg_id"] = last.MsgID
		updates["last_msg_type"] = last.MsgType
		updates["last_sender_id"] = last.SenderID
		updates["last_msg_digest"] = last.Digest
	}
	err := r.db.WithContext(ctx).Model(&models.TalkSession{}).
		Where("user_id = ? AND talk_id = ?", userID, talkID).
		Updates(updates).Error
	if err != nil {
		return imerr.Storage("更新会话摘要失败", err)
	}
	return nil
}

// ListUsersByLastMsg 找出以该消息为最后可见消息的所有用户
func (r *SessionRepository) ListUsersByLastMsg(ctx context.Context, talkID uint64, msgID string) ([]uint64, error) {
	var uids []uint64
	err := r.db.WithContext(ctx).Model(&models.TalkSession{}).
		Where("talk_id = ? AND last_msg_id = ? AND is_deleted = ?", talkID, msgID, models.FlagNo).
		Pluck("user_id", &uids).Error
	if err != nil {
		return nil, imerr.Storage("查询受影响用户失败", err)
	}
	return uids, nil
}

// ListUsersByTalkID 会话内持有活跃快照的所有用户
func (r *SessionRepository) ListUsersByTalkID(ctx context.Context, talkID uint64) ([]uint64, error) {
	var uids []uint64
	err := r.db.WithContext(ctx).Model(&models.TalkSession{}).
		Where("talk_id = ? AND is_deleted = ?", talkID, models.FlagNo).
		Pluck("user_id", &uids).Error
	if err != nil {
		return nil, imerr.Storage("查询会话用户失败", err)
	}
	return uids, nil
}

// ListByUserID 用户的会话列表（置顶优先，按更新时间倒序）
func (r *SessionRepository) ListByUserID(ctx context.Context, userID uint64) ([]models.TalkSession, error) {
	var sessions []models.TalkSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_deleted = ?", userID, models.FlagNo).
		Order("is_top ASC, updated_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, imerr.Storage("获取会话列表失败", err)
	}
	return sessions, nil
}

// ClearUnread 未读数单行清零（外部"标记已读"写路径）
func (r *SessionRepository) ClearUnread(ctx context.Context, userID, talkID uint64) error {
	err := r.db.WithContext(ctx).Model(&models.TalkSession{}).
		Where("user_id = ? AND talk_id = ?", userID, talkID).
		Update("unread_num", 0).Error
	if err != nil {
		return imerr.Storage("清除未读数失败", err)
	}
	return nil
}

func (r *SessionRepository) SetTop(ctx context.Context, userID, talkID uint64, top bool) error {
	return r.setFlag(ctx, userID, talkID, "is_top", top, "设置置顶失败")
}

func (r *SessionRepository) SetDisturb(ctx context.Context, userID, talkID uint64, disturb bool) error {
	return r.setFlag(ctx, userID, talkID, "is_disturb", disturb, "设置免打扰失败")
}

func (r *SessionRepository) setFlag(ctx context.Context, userID, talkID uint64, column string, on bool, errMsg string) error {
	value := models.FlagNo
	if on {
		value = models.FlagYes
	}
	err := r.db.WithContext(ctx).Model(&models.TalkSession{}).
		Where("user_id = ? AND talk_id = ?", userID, talkID).
		Update(column, value).Error
	if err != nil {
		return imerr.Storage(errMsg, err)
	}
	return nil
}

// SoftDelete 会话从列表消失但保留行，等待下一条消息恢复
func (r *SessionRepository) SoftDelete(ctx context.Context, userID, talkID uint64) error {
	err := r.db.WithContext(ctx).Model(&models.TalkSession{}).
		Where("user_id = ? AND talk_id = ?", userID, talkID).
		Update("is_deleted", models.FlagYes).Error
	if err != nil {
		return imerr.Storage("删除会话失败", err)
	}
	return nil
}
