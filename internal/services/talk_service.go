package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/imerr"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/models"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/storage"
	"github.com/DreamTraveler233/XinYu-IM-Backend/pkg/logger"
)

// TalkService 会话列表与会话视图维护
type TalkService struct {
	store storage.Store
	log   *logger.Logger
}

// NewTalkService 创建会话服务实例
func NewTalkService(store storage.Store, log *logger.Logger) *TalkService {
	return &TalkService{store: store, log: log}
}

// SessionItem 会话列表中的一行
type SessionItem struct {
	ID        uint64 `json:"id"`
	TalkMode  uint8  `json:"talk_mode"`
	ToFromID  uint64 `json:"to_from_id"`
	IsTop     uint8  `json:"is_top"`
	IsDisturb uint8  `json:"is_disturb"`
	IsRobot   uint8  `json:"is_robot"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	Remark    string `json:"remark"`
	UnreadNum uint32 `json:"unread_num"`
	MsgText   string `json:"msg_text"`
	UpdatedAt string `json:"updated_at"`
}

func toSessionItem(s *models.TalkSession) SessionItem {
	return SessionItem{
		ID:        s.ID,
		TalkMode:  s.TalkMode,
		ToFromID:  s.ToFromID,
		IsTop:     s.IsTop,
		IsDisturb: s.IsDisturb,
		IsRobot:   s.IsRobot,
		Name:      s.Name,
		Avatar:    s.Avatar,
		Remark:    s.Remark,
		UnreadNum: s.UnreadNum,
		MsgText:   s.LastMsgDigest,
		UpdatedAt: s.UpdatedAt.Format(timeLayout),
	}
}

// SessionList 返回用户的活跃会话列表（置顶优先，其余按最近更新排序）
func (s *TalkService) SessionList(ctx context.Context, userID uint64) ([]SessionItem, error) {
	sessions, err := s.store.Sessions().ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]SessionItem, 0, len(sessions))
	for i := range sessions {
		items = append(items, toSessionItem(&sessions[i]))
	}
	return items, nil
}

// resolveTalkID 只读解析 talk_id
func (s *TalkService) resolveTalkID(ctx context.Context, userID uint64, talkMode uint8, toFromID uint64) (uint64, error) {
	switch talkMode {
	case models.TalkModeSingle:
		return s.store.Talks().GetSingleTalkID(ctx, userID, toFromID)
	case models.TalkModeGroup:
		return s.store.Talks().GetGroupTalkID(ctx, toFromID)
	default:
		return 0, imerr.Validation("非法会话类型")
	}
}

// OpenSession 打开（创建或恢复）会话视图，返回可渲染的会话行。
// 单聊会话同时确保底层 talk 存在。
func (s *TalkService) OpenSession(ctx context.Context, userID uint64, talkMode uint8, toFromID uint64) (*SessionItem, error) {
	if toFromID == 0 {
		return nil, imerr.Validation("非法会话对象")
	}
	if talkMode != models.TalkModeSingle && talkMode != models.TalkModeGroup {
		return nil, imerr.Validation("非法会话类型")
	}
	if talkMode == models.TalkModeSingle && toFromID == userID {
		return nil, imerr.Validation("不能与自己建立会话")
	}

	var session *models.TalkSession
	err := s.store.Transaction(ctx, func(tx storage.Store) error {
		var talkID uint64
		var err error
		if talkMode == models.TalkModeSingle {
			talkID, err = tx.Talks().FindOrCreateSingle(ctx, userID, toFromID)
		} else {
			talkID, err = tx.Talks().FindOrCreateGroup(ctx, toFromID)
		}
		if err != nil {
			return err
		}

		ns := models.TalkSession{
			UserID:    userID,
			TalkID:    talkID,
			TalkMode:  talkMode,
			ToFromID:  toFromID,
			IsTop:     models.FlagNo,
			IsDisturb: models.FlagNo,
			IsRobot:   models.FlagNo,
			IsDeleted: models.FlagNo,
		}
		if talkMode == models.TalkModeSingle {
			if ui, err := tx.Users().GetUserSimple(ctx, toFromID); err == nil {
				ns.Name = ui.Nickname
				ns.Avatar = ui.Avatar
			}
			if remark, err := tx.Users().GetContactRemark(ctx, userID, toFromID); err == nil && remark != "" {
				ns.Remark = remark
			}
		}
		if err := tx.Sessions().CreateOrRestore(ctx, &ns); err != nil {
			return err
		}

		session, err = tx.Sessions().Get(ctx, userID, talkID)
		return err
	})
	if err != nil {
		return nil, err
	}

	item := toSessionItem(session)
	return &item, nil
}

// RemoveSession 从会话列表移除（软删除），消息本体不受影响
func (s *TalkService) RemoveSession(ctx context.Context, userID uint64, talkMode uint8, toFromID uint64) error {
	talkID, err := s.resolveTalkID(ctx, userID, talkMode, toFromID)
	if err != nil {
		if imerr.KindOf(err) == imerr.KindNotFound {
			return nil
		}
		return err
	}
	return s.store.Sessions().SoftDelete(ctx, userID, talkID)
}

// ClearUnread 未读清零，并把会话内消息标记为当前用户已读
func (s *TalkService) ClearUnread(ctx context.Context, userID uint64, talkMode uint8, toFromID uint64) error {
	talkID, err := s.resolveTalkID(ctx, userID, talkMode, toFromID)
	if err != nil {
		if imerr.KindOf(err) == imerr.KindNotFound {
			return nil
		}
		return err
	}

	return s.store.Transaction(ctx, func(tx storage.Store) error {
		if err := tx.Sessions().ClearUnread(ctx, userID, talkID); err != nil {
			return err
		}
		// 已读回执属于附属索引，失败不阻断清零
		if err := tx.Messages().MarkReadByTalk(ctx, talkID, userID); err != nil {
			s.log.Warn("写入已读标记失败",
				zap.Uint64("talk_id", talkID),
				zap.Uint64("user_id", userID),
				zap.Error(err))
		}
		return nil
	})
}

// SetTop 设置/取消会话置顶，action 1=置顶 2=取消
func (s *TalkService) SetTop(ctx context.Context, userID uint64, talkMode uint8, toFromID uint64, action uint8) error {
	if action != models.FlagYes && action != models.FlagNo {
		return imerr.Validation("非法操作类型")
	}
	talkID, err := s.resolveTalkID(ctx, userID, talkMode, toFromID)
	if err != nil {
		return err
	}
	return s.store.Sessions().SetTop(ctx, userID, talkID, action == models.FlagYes)
}

// SetDisturb 设置/取消免打扰，action 1=开启 2=关闭
func (s *TalkService) SetDisturb(ctx context.Context, userID uint64, talkMode uint8, toFromID uint64, action uint8) error {
	if action != models.FlagYes && action != models.FlagNo {
		return imerr.Validation("非法操作类型")
	}
	talkID, err := s.resolveTalkID(ctx, userID, talkMode, toFromID)
	if err != nil {
		return err
	}
	return s.store.Sessions().SetDisturb(ctx, userID, talkID, action == models.FlagYes)
}
