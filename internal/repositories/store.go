package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/imerr"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/storage"
)

// gormStore 基于 gorm 的存储适配器实现。
// Transaction 内把各仓储重新绑定到事务连接，保证一次业务操作的
// 所有写入落在同一个提交点上。
type gormStore struct {
	db       *gorm.DB
	talks    *TalkRepository
	messages *MessageRepository
	sessions *SessionRepository
	users    *UserRepository
}

// NewStore 创建存储适配器
func NewStore(db *gorm.DB) storage.Store {
	return &gormStore{
		db:       db,
		talks:    NewTalkRepository(db),
		messages: NewMessageRepository(db),
		sessions: NewSessionRepository(db),
		users:    NewUserRepository(db),
	}
}

func (s *gormStore) Talks() storage.TalkRepo       { return s.talks }
func (s *gormStore) Messages() storage.MessageRepo { return s.messages }
func (s *gormStore) Sessions() storage.SessionRepo { return s.sessions }
func (s *gormStore) Users() storage.UserRepo       { return s.users }

func (s *gormStore) Transaction(ctx context.Context, fn func(tx storage.Store) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
	if err == nil {
		return nil
	}
	// 业务错误原样透出，驱动层错误统一包装为存储错误
	var e *imerr.Error
	if errors.As(err, &e) {
		return err
	}
	return imerr.Storage("数据库事务失败", err)
}
