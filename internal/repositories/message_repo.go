package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/imerr"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/models"
)

// MessageRepository 消息仓储（含按用户删除、提及、转发映射、已读表）
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, m *models.Message) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return imerr.Storage("消息写入失败", err)
	}
	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, msgID string) (*models.Message, error) {
	var m models.Message
	err := r.db.WithContext(ctx).Where("id = ?", msgID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, imerr.NotFound("消息不存在")
	}
	if err != nil {
		return nil, imerr.Storage("消息加载失败", err)
	}
	return &m, nil
}

func (r *MessageRepository) GetByIDs(ctx context.Context, msgIDs []string) ([]models.Message, error) {
	if len(msgIDs) == 0 {
		return nil, nil
	}
	var msgs []models.Message
	if err := r.db.WithContext(ctx).Where("id IN ?", msgIDs).Find(&msgs).Error; err != nil {
		return nil, imerr.Storage("批量加载消息失败", err)
	}
	return msgs, nil
}

// Revoke 撤回转换：单向，仅更新本体的撤回三元组
func (r *MessageRepository) Revoke(ctx context.Context, msgID string, by uint64, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", msgID).
		Updates(map[string]any{
			"is_revoked":  models.MsgRevoked,
			"revoke_by":   by,
			"revoke_time": at.Unix(),
		})
	if res.Error != nil {
		return imerr.Storage("撤回失败", res.Error)
	}
	if res.RowsAffected == 0 {
		return imerr.NotFound("消息不存在")
	}
	return nil
}

// ListRecentDescFiltered 按 sequence 倒序分页，剔除 viewer 已删除的消息
func (r *MessageRepository) ListRecentDescFiltered(ctx context.Context, talkID, anchorSeq uint64, limit int, viewerID uint64, msgType uint16) ([]models.Message, error) {
	q := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("talk_id = ?", talkID).
		Where("NOT EXISTS (SELECT 1 FROM im_message_user_delete d WHERE d.msg_id = im_message.id AND d.user_id = ?)", viewerID)
	if anchorSeq > 0 {
		q = q.Where("sequence < ?", anchorSeq)
	}
	if msgType > 0 {
		q = q.Where("msg_type = ?", msgType)
	}
	var msgs []models.Message
	if err := q.Order("sequence DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, imerr.Storage("加载消息失败", err)
	}
	return msgs, nil
}

// LatestPreviewCandidate 会话预览候选：撤回把预览回退到更早的消息，
// 不在原位置展示占位文案
func (r *MessageRepository) LatestPreviewCandidate(ctx context.Context, talkID, viewerID uint64) (*models.Message, error) {
	var m models.Message
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("talk_id = ?", talkID).
		Where("is_revoked = ?", models.MsgNormal).
		Where("NOT EXISTS (SELECT 1 FROM im_message_user_delete d WHERE d.msg_id = im_message.id AND d.user_id = ?)", viewerID).
		Order("sequence DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, imerr.Storage("加载会话预览候选失败", err)
	}
	return &m, nil
}

// MarkUserDelete 幂等插入按用户删除标记，不影响其他用户可见性
func (r *MessageRepository) MarkUserDelete(ctx context.Context, msgID string, userID uint64) error {
	row := models.MessageUserDelete{MsgID: msgID, UserID: userID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return imerr.Storage("删除消息失败", err)
	}
	return nil
}

// MarkAllUserDeleteInTalk 会话内全部消息对该用户标记删除（清空会话）
func (r *MessageRepository) MarkAllUserDeleteInTalk(ctx context.Context, talkID, userID uint64) error {
	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO im_message_user_delete (msg_id, user_id, created_at)
		 SELECT m.id, ?, NOW() FROM im_message m
		 WHERE m.talk_id = ?
		 ON CONFLICT (msg_id, user_id) DO NOTHING`, userID, talkID).Error
	if err != nil {
		return imerr.Storage("清空会话消息失败", err)
	}
	return nil
}

// AddMentions 提及映射随消息原子写入，失败由外层回滚
func (r *MessageRepository) AddMentions(ctx context.Context, msgID string, userIDs []uint64) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]models.MessageMention, 0, len(userIDs))
	for _, uid := range userIDs {
		rows = append(rows, models.MessageMention{MsgID: msgID, UserID: uid})
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
	if err != nil {
		return imerr.Storage("提及记录保存失败", err)
	}
	return nil
}

func (r *MessageRepository) GetMentions(ctx context.Context, msgID string) ([]uint64, error) {
	var uids []uint64
	err := r.db.WithContext(ctx).Model(&models.MessageMention{}).
		Where("msg_id = ?", msgID).
		Pluck("user_id", &uids).Error
	if err != nil {
		return nil, imerr.Storage("加载提及记录失败", err)
	}
	return uids, nil
}

// AddForwardSources 转发来源映射，尽力而为（失败不回滚主流程）
func (r *MessageRepository) AddForwardSources(ctx context.Context, rows []models.MessageForward) error {
	if len(rows) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return imerr.Storage("转发映射保存失败", err)
	}
	return nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, msgID string, userID uint64) error {
	row := models.MessageRead{MsgID: msgID, UserID: userID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return imerr.Storage("已读标记失败", err)
	}
	return nil
}

func (r *MessageRepository) MarkReadByTalk(ctx context.Context, talkID, userID uint64) error {
	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO im_message_read (msg_id, user_id, created_at)
		 SELECT m.id, ?, NOW() FROM im_message m
		 WHERE m.talk_id = ? AND m.sender_id <> ?
		 ON CONFLICT (msg_id, user_id) DO NOTHING`, userID, talkID, userID).Error
	if err != nil {
		return imerr.Storage("会话已读标记失败", err)
	}
	return nil
}
