package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/imerr"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/models"
)

// UserRepository 联系人/档案协作方（本核心只读）
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetUserSimple(ctx context.Context, userID uint64) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, imerr.NotFound("用户不存在")
	}
	if err != nil {
		return nil, imerr.Storage("加载用户信息失败", err)
	}
	return &u, nil
}

// GetContactRemark 无联系人关系时返回空串，展示字段缺失不构成错误
func (r *UserRepository) GetContactRemark(ctx context.Context, ownerID, targetID uint64) (string, error) {
	var c models.Contact
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND target_id = ?", ownerID, targetID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", imerr.Storage("加载联系人备注失败", err)
	}
	return c.Remark, nil
}
