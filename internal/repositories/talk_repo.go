package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/imerr"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/models"
)

// TalkRepository 会话与序列仓储
type TalkRepository struct {
	db *gorm.DB
}

func NewTalkRepository(db *gorm.DB) *TalkRepository {
	return &TalkRepository{db: db}
}

// canonicalPair 单聊参与者规范化：小 ID 在前
func canonicalPair(userA, userB uint64) (uint64, uint64) {
	if userA > userB {
		return userB, userA
	}
	return userA, userB
}

// FindOrCreateSingle 查找或创建单聊会话。
// 并发双向首次互发时依赖 uk_talk_key 唯一索引：插入冲突说明对方已建，
// 重读一次即可收敛，不对整表加锁。
func (r *TalkRepository) FindOrCreateSingle(ctx context.Context, userA, userB uint64) (uint64, error) {
	if userA == 0 || userB == 0 || userA == userB {
		return 0, imerr.Validation("非法的单聊参与者")
	}
	minID, maxID := canonicalPair(userA, userB)

	var talk models.Talk
	err := r.db.WithContext(ctx).
		Where("talk_mode = ? AND min_user_id = ? AND max_user_id = ?", models.TalkModeSingle, minID, maxID).
		First(&talk).Error
	if err == nil {
		return talk.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, imerr.Storage("查询单聊会话失败", err)
	}

	talk = models.Talk{TalkMode: models.TalkModeSingle, MinUserID: minID, MaxUserID: maxID}
	err = r.db.WithContext(ctx).Create(&talk).Error
	if err == nil {
		return talk.ID, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 对方方向并发先建，重读
		var existing models.Talk
		rerr := r.db.WithContext(ctx).
			Where("talk_mode = ? AND min_user_id = ? AND max_user_id = ?", models.TalkModeSingle, minID, maxID).
			First(&existing).Error
		if rerr != nil {
			return 0, imerr.Storage("重读单聊会话失败", rerr)
		}
		return existing.ID, nil
	}
	return 0, imerr.Storage("创建单聊会话失败", err)
}

// FindOrCreateGroup 查找或创建群聊会话（每个群唯一）
func (r *TalkRepository) FindOrCreateGroup(ctx context.Context, groupID uint64) (uint64, error) {
	if groupID == 0 {
		return 0, imerr.Validation("非法的群ID")
	}

	var talk models.Talk
	err := r.db.WithContext(ctx).
		Where("talk_mode = ? AND group_id = ?", models.TalkModeGroup, groupID).
		First(&talk).Error
	if err == nil {
		return talk.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, imerr.Storage("查询群聊会话失败", err)
	}

	talk = models.Talk{TalkMode: models.TalkModeGroup, GroupID: groupID}
	err = r.db.WithContext(ctx).Create(&talk).Error
	if err == nil {
		return talk.ID, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		var existing models.Talk
		rerr := r.db.WithContext(ctx).
			Where("talk_mode = ? AND group_id = ?", models.TalkModeGroup, groupID).
			First(&existing).Error
		if rerr != nil {
			return 0, imerr.Storage("重读群聊会话失败", rerr)
		}
		return existing.ID, nil
	}
	return 0, imerr.Storage("创建群聊会话失败", err)
}

// GetSingleTalkID 只读解析单聊会话，读路径不得以查询副作用建会话
func (r *TalkRepository) GetSingleTalkID(ctx context.Context, userA, userB uint64) (uint64, error) {
	minID, maxID := canonicalPair(userA, userB)
	var talk models.Talk
	err := r.db.WithContext(ctx).
		Where("talk_mode = ? AND min_user_id = ? AND max_user_id = ?", models.TalkModeSingle, minID, maxID).
		First(&talk).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, imerr.NotFound("单聊会话不存在")
	}
	if err != nil {
		return 0, imerr.Storage("查询单聊会话失败", err)
	}
	return talk.ID, nil
}

// GetGroupTalkID 只读解析群聊会话
func (r *TalkRepository) GetGroupTalkID(ctx context.Context, groupID uint64) (uint64, error) {
	var talk models.Talk
	err := r.db.WithContext(ctx).
		Where("talk_mode = ? AND group_id = ?", models.TalkModeGroup, groupID).
		First(&talk).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, imerr.NotFound("群聊会话不存在")
	}
	if err != nil {
		return 0, imerr.Storage("查询群聊会话失败", err)
	}
	return talk.ID, nil
}

// NextSequence 为会话发下一个序列号（首号为 1）。
// upsert + RETURNING 在计数器行上原子自增，必须在调用方事务的连接上执行，
// 失败会使外层事务整体回滚。
func (r *TalkRepository) NextSequence(ctx context.Context, talkID uint64) (uint64, error) {
	var value uint64
	err := r.db.WithContext(ctx).Raw(
		`INSERT INTO im_talk_sequence (talk_id, value, updated_at)
		 VALUES (?, 1, NOW())
		 ON CONFLICT (talk_id)
		 DO UPDATE SET value = im_talk_sequence.value + 1, updated_at = NOW()
		 RETURNING value`, talkID).Scan(&value).Error
	if err != nil {
		return 0, imerr.Storage("分配消息序列失败", err)
	}
	return value, nil
}
