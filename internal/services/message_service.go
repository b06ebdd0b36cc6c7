package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/gateway"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/imerr"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/models"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/storage"
	"github.com/DreamTraveler233/XinYu-IM-Backend/pkg/logger"
	"github.com/DreamTraveler233/XinYu-IM-Backend/pkg/utils"
)

const (
	// 单次转发最多内嵌的预览条数
	maxForwardPreview = 50
	// 摘要最大字节数（与 last_msg_digest 列宽一致）
	maxDigestBytes = 255
	// 时间展示格式
	timeLayout = "2006-01-02 15:04:05"
)

// MessageService 消息生命周期服务：发送、撤回、按用户删除、历史查询。
// 所有写路径在单个事务内完成，推送在事务提交之后异步触发。
type MessageService struct {
	store  storage.Store
	pusher Pusher
	pool   *utils.WorkerPool
	log    *logger.Logger
}

// NewMessageService 创建消息服务实例
func NewMessageService(store storage.Store, pusher Pusher, pool *utils.WorkerPool, log *logger.Logger) *MessageService {
	if pusher == nil {
		pusher = NopPusher{}
	}
	return &MessageService{
		store:  store,
		pusher: pusher,
		pool:   pool,
		log:    log,
	}
}

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	TalkMode         uint8    `json:"talk_mode" binding:"required"`
	ToFromID         uint64   `json:"to_from_id" binding:"required"`
	MsgType          uint16   `json:"msg_type" binding:"required"`
	Content          string   `json:"content"`
	Extra            string   `json:"extra"`
	QuoteMsgID       string   `json:"quote_msg_id"`
	MsgID            string   `json:"msg_id"`
	MentionedUserIDs []uint64 `json:"mentioned_user_ids"`
}

// MessageRecord 消息记录视图，前端可直接渲染为会话中的一条消息
type MessageRecord struct {
	MsgID     string `json:"msg_id"`
	Sequence  uint64 `json:"sequence"`
	MsgType   uint16 `json:"msg_type"`
	FromID    uint64 `json:"from_id"`
	Nickname  string `json:"nickname"`
	Avatar    string `json:"avatar"`
	IsRevoked uint8  `json:"is_revoked"`
	SendTime  string `json:"send_time"`
	Extra     string `json:"extra"` // 标准化后的 JSON 字符串
	Quote     string `json:"quote"` // 引用消息 JSON，无引用时为 "{}"
}

// MessageRecordPage 一页消息记录，cursor 为下一页锚点（本页最小 sequence）
type MessageRecordPage struct {
	Items  []MessageRecord `json:"items"`
	Cursor uint64          `json:"cursor"`
}

// resolveTalkID 只读解析 talk_id；会话不存在返回 imerr.NotFound
func (s *MessageService) resolveTalkID(ctx context.Context, currentUserID uint64, talkMode uint8, toFromID uint64) (uint64, error) {
	switch talkMode {
	case models.TalkModeSingle:
		return s.store.Talks().GetSingleTalkID(ctx, currentUserID, toFromID)
	case models.TalkModeGroup:
		return s.store.Talks().GetGroupTalkID(ctx, toFromID)
	default:
		return 0, imerr.Validation("非法会话类型")
	}
}

// messageDigest 生成会话列表预览摘要：
// 文本直接截断，其它类型用占位文案避免泄露内部结构
func messageDigest(msgType uint16, contentText string) string {
	if msgType == models.MsgTypeText {
		return truncateDigest(contentText, maxDigestBytes)
	}
	if preview, ok := models.MsgTypePreview[msgType]; ok {
		return preview
	}
	return "[非文本消息]"
}

// truncateDigest 按字节上限截断，回退到合法的 UTF-8 边界
func truncateDigest(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}

// buildRecord 把持久化消息装配为前端记录：
// 标准化 extra（文本补 content 字段、统一并入 mentions），
// 补充发送者昵称头像与引用预览
func (s *MessageService) buildRecord(ctx context.Context, m *models.Message) MessageRecord {
	rec := MessageRecord{
		MsgID:     m.ID,
		Sequence:  m.Sequence,
		MsgType:   m.MsgType,
		FromID:    m.SenderID,
		IsRevoked: m.IsRevoked,
		SendTime:  m.CreatedAt.Format(timeLayout),
		Quote:     "{}",
	}

	extra := map[string]any{}
	if m.MsgType == models.MsgTypeText {
		extra["content"] = m.ContentText
	} else if m.Extra != "" {
		if err := json.Unmarshal([]byte(m.Extra), &extra); err != nil {
			extra = map[string]any{}
		}
	}
	if mentioned, err := s.store.Messages().GetMentions(ctx, m.ID); err == nil && len(mentioned) > 0 {
		extra["mentions"] = mentioned
	}
	if raw, err := json.Marshal(extra); err == nil {
		rec.Extra = string(raw)
	} else {
		rec.Extra = "{}"
	}

	if ui, err := s.store.Users().GetUserSimple(ctx, m.SenderID); err == nil {
		rec.Nickname = ui.Nickname
		rec.Avatar = ui.Avatar
	}

	if m.QuoteMsgID != "" {
		if quoted, err := s.store.Messages().GetByID(ctx, m.QuoteMsgID); err == nil {
			q := map[string]any{
				"quote_id": quoted.ID,
				"from_id":  quoted.SenderID,
				"content":  quoted.ContentText, // 仅文本简化
			}
			if raw, err := json.Marshal(q); err == nil {
				rec.Quote = string(raw)
			}
		}
	}
	return rec
}

// SendMessage 发送消息：解析/创建会话、分配序列、落库消息及附属记录、
// 刷新双方会话快照，提交后推送 im.session.update 与 im.message。
func (s *MessageService) SendMessage(ctx context.Context, currentUserID uint64, req *SendMessageRequest) (*MessageRecord, error) {
	if req.TalkMode != models.TalkModeSingle && req.TalkMode != models.TalkModeGroup {
		return nil, imerr.Validation("非法会话类型")
	}
	if req.ToFromID == 0 {
		return nil, imerr.Validation("非法会话对象")
	}
	if req.TalkMode == models.TalkModeSingle && req.ToFromID == currentUserID {
		return nil, imerr.Validation("不能给自己发送消息")
	}
	if _, known := models.MsgTypePreview[req.MsgType]; !known && req.MsgType != models.MsgTypeText {
		return nil, imerr.Validation("不支持的消息类型")
	}
	if req.MsgType == models.MsgTypeText && req.Content == "" {
		return nil, imerr.Validation("消息内容不能为空")
	}

	// 客户端可预生成消息ID（便于本地去重），否则服务端生成
	msgID := req.MsgID
	if msgID == "" {
		msgID = utils.NewMsgID()
	} else if !utils.ValidateMsgID(msgID) {
		return nil, imerr.Validation("消息ID格式非法")
	}
	if req.QuoteMsgID != "" && !utils.ValidateMsgID(req.QuoteMsgID) {
		return nil, imerr.Validation("引用消息ID格式非法")
	}

	var (
		msg        models.Message
		digest     string
		groupUsers []uint64
	)

	err := s.store.Transaction(ctx, func(tx storage.Store) error {
		var talkID uint64
		var err error
		if req.TalkMode == models.TalkModeSingle {
			talkID, err = tx.Talks().FindOrCreateSingle(ctx, currentUserID, req.ToFromID)
		} else {
			talkID, err = tx.Talks().FindOrCreateGroup(ctx, req.ToFromID)
		}
		if err != nil {
			return err
		}

		seq, err := tx.Talks().NextSequence(ctx, talkID)
		if err != nil {
			return err
		}

		msg = models.Message{
			ID:          msgID,
			TalkID:      talkID,
			Sequence:    seq,
			TalkMode:    req.TalkMode,
			MsgType:     req.MsgType,
			SenderID:    currentUserID,
			ContentText: req.Content,
			Extra:       req.Extra,
			QuoteMsgID:  req.QuoteMsgID,
			IsRevoked:   models.MsgNormal,
			CreatedAt:   time.Now(),
		}
		if req.TalkMode == models.TalkModeSingle {
			msg.ReceiverID = req.ToFromID
		} else {
			msg.GroupID = req.ToFromID
		}

		// 转发消息：服务端内嵌预览记录并登记原始消息映射
		var forwardRows []models.MessageForward
		if msg.MsgType == models.MsgTypeForward && msg.Extra != "" {
			forwardRows = s.enrichForwardExtra(ctx, tx, &msg)
		}

		if err := tx.Messages().Create(ctx, &msg); err != nil {
			return err
		}

		// @提及与消息同事务写入：失败则整体回滚
		if len(req.MentionedUserIDs) > 0 {
			if err := tx.Messages().AddMentions(ctx, msg.ID, req.MentionedUserIDs); err != nil {
				return err
			}
		}

		// 转发映射属于附属索引，失败不阻断发送
		if len(forwardRows) > 0 {
			if err := tx.Messages().AddForwardSources(ctx, forwardRows); err != nil {
				s.log.Warn("写入转发映射失败", zap.String("msg_id", msg.ID), zap.Error(err))
			}
		}

		// 单聊：保证双方会话视图存在（软删除则恢复）
		if req.TalkMode == models.TalkModeSingle {
			s.ensureSingleSession(ctx, tx, req.ToFromID, currentUserID, talkID)
			s.ensureSingleSession(ctx, tx, currentUserID, req.ToFromID, talkID)
		}

		digest = messageDigest(msg.MsgType, msg.ContentText)
		if err := tx.Sessions().BumpOnNewMessage(ctx, talkID, currentUserID, storage.LastMsg{
			MsgID:    msg.ID,
			MsgType:  msg.MsgType,
			SenderID: currentUserID,
			Digest:   digest,
		}); err != nil {
			return err
		}

		// 群聊推送目标在事务内取快照，避免提交后再读
		if req.TalkMode == models.TalkModeGroup {
			groupUsers, err = tx.Sessions().ListUsersByTalkID(ctx, talkID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rec := s.buildRecord(ctx, &msg)

	s.submit(func() {
		update := gateway.SessionUpdatePayload{
			TalkMode:  req.TalkMode,
			ToFromID:  req.ToFromID,
			SenderID:  currentUserID,
			MsgText:   &digest,
			UpdatedAt: time.Now().UnixMilli(),
		}
		if req.TalkMode == models.TalkModeSingle {
			// 单聊下接收方看到的会话对象是发送者
			peerUpdate := update
			peerUpdate.ToFromID = currentUserID
			s.pusher.PushToUser(req.ToFromID, gateway.EventSessionUpdate, peerUpdate)
			s.pusher.PushToUser(currentUserID, gateway.EventSessionUpdate, update)
		} else {
			for _, uid := range groupUsers {
				s.pusher.PushToUser(uid, gateway.EventSessionUpdate, update)
			}
		}
		s.pusher.PushMessage(req.TalkMode, req.ToFromID, currentUserID, rec)
	})

	return &rec, nil
}

// enrichForwardExtra 解析 extra.msg_ids，截取前 maxForwardPreview 条
// 原始消息生成预览并回写 extra.records，同时返回待写入的映射行。
// 任何解析失败都按原样保留 extra，不阻断发送。
func (s *MessageService) enrichForwardExtra(ctx context.Context, tx storage.Store, msg *models.Message) []models.MessageForward {
	var payload map[string]any
	if err := json.Unmarshal([]byte(msg.Extra), &payload); err != nil {
		s.log.Warn("解析转发负载失败", zap.String("msg_id", msg.ID), zap.Error(err))
		return nil
	}
	srcIDs := extractMsgIDs(payload["msg_ids"])
	if len(srcIDs) == 0 {
		return nil
	}
	if len(srcIDs) > maxForwardPreview {
		srcIDs = srcIDs[:maxForwardPreview]
	}

	srcMsgs, err := tx.Messages().GetByIDs(ctx, srcIDs)
	if err != nil {
		s.log.Warn("加载转发原始消息失败", zap.String("msg_id", msg.ID), zap.Error(err))
		return nil
	}

	records := make([]map[string]any, 0, len(srcMsgs))
	rows := make([]models.MessageForward, 0, len(srcMsgs))
	for _, src := range srcMsgs {
		item := map[string]any{"content": src.ContentText}
		if ui, err := tx.Users().GetUserSimple(ctx, src.SenderID); err == nil {
			item["nickname"] = ui.Nickname
		} else {
			item["nickname"] = nil
		}
		records = append(records, item)
		rows = append(rows, models.MessageForward{
			MsgID:       msg.ID,
			SrcMsgID:    src.ID,
			SrcTalkID:   src.TalkID,
			SrcSenderID: src.SenderID,
		})
	}
	payload["records"] = records
	if raw, err := json.Marshal(payload); err == nil {
		msg.Extra = string(raw)
	}
	return rows
}

// extractMsgIDs 容忍字符串与数字混排的 msg_ids 数组
func extractMsgIDs(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		switch id := item.(type) {
		case string:
			out = append(out, id)
		case float64:
			out = append(out, strconv.FormatUint(uint64(id), 10))
		}
	}
	return out
}

// ensureSingleSession 为 userID 建立指向 peerID 的单聊会话视图，
// 联系人昵称/备注仅用于展示，查不到不影响会话创建；
// 创建失败只记日志，不阻断消息写入
func (s *MessageService) ensureSingleSession(ctx context.Context, tx storage.Store, userID, peerID, talkID uint64) {
	session := models.TalkSession{
		UserID:    userID,
		TalkID:    talkID,
		TalkMode:  models.TalkModeSingle,
		ToFromID:  peerID,
		IsTop:     models.FlagNo,
		IsDisturb: models.FlagNo,
		IsRobot:   models.FlagNo,
		IsDeleted: models.FlagNo,
	}
	if ui, err := tx.Users().GetUserSimple(ctx, peerID); err == nil {
		session.Name = ui.Nickname
		session.Avatar = ui.Avatar
	}
	if remark, err := tx.Users().GetContactRemark(ctx, userID, peerID); err == nil && remark != "" {
		session.Remark = remark
	}
	if err := tx.Sessions().CreateOrRestore(ctx, &session); err != nil {
		s.log.Warn("创建会话视图失败",
			zap.Uint64("user_id", userID),
			zap.Uint64("talk_id", talkID),
			zap.Error(err))
	}
}

// RevokeMessage 撤回消息：仅发送者可撤回；撤回后为所有以该消息为
// 最后消息的会话快照重建或清空摘要，并广播撤回事件。
func (s *MessageService) RevokeMessage(ctx context.Context, currentUserID uint64, talkMode uint8, toFromID uint64, msgID string) error {
	if talkMode != models.TalkModeSingle && talkMode != models.TalkModeGroup {
		return imerr.Validation("非法会话类型")
	}

	msg, err := s.store.Messages().GetByID(ctx, msgID)
	if err != nil {
		return err
	}
	if msg.SenderID != currentUserID {
		return imerr.Permission("无权限撤回")
	}
	if msg.IsRevoked == models.MsgRevoked {
		return imerr.Validation("消息已撤回")
	}

	type sessionUpdate struct {
		userID uint64
		digest *string // nil 表示清空预览
	}
	var (
		updates   []sessionUpdate
		talkUsers []uint64
	)

	err = s.store.Transaction(ctx, func(tx storage.Store) error {
		if err := tx.Messages().Revoke(ctx, msgID, currentUserID, time.Now()); err != nil {
			return err
		}

		// 该消息是哪些用户会话快照的最后一条
		affected, err := tx.Sessions().ListUsersByLastMsg(ctx, msg.TalkID, msgID)
		if err != nil {
			return err
		}
		for _, uid := range affected {
			lm, err := tx.Messages().LatestPreviewCandidate(ctx, msg.TalkID, uid)
			if err != nil {
				return err
			}
			if lm != nil {
				digest := messageDigest(lm.MsgType, lm.ContentText)
				if err := tx.Sessions().UpdateLastMsg(ctx, uid, msg.TalkID, &storage.LastMsg{
					MsgID:    lm.ID,
					MsgType:  lm.MsgType,
					SenderID: lm.SenderID,
					Digest:   digest,
				}); err != nil {
					return err
				}
				updates = append(updates, sessionUpdate{userID: uid, digest: &digest})
			} else {
				if err := tx.Sessions().UpdateLastMsg(ctx, uid, msg.TalkID, nil); err != nil {
					return err
				}
				updates = append(updates, sessionUpdate{userID: uid, digest: nil})
			}
		}

		talkUsers, err = tx.Sessions().ListUsersByTalkID(ctx, msg.TalkID)
		return err
	})
	if err != nil {
		return err
	}

	s.submit(func() {
		now := time.Now().UnixMilli()
		for _, u := range updates {
			// 单聊下每个接收方看到的会话对象都是"对方"
			target := toFromID
			if talkMode == models.TalkModeSingle && u.userID != currentUserID {
				target = currentUserID
			}
			s.pusher.PushToUser(u.userID, gateway.EventSessionUpdate, gateway.SessionUpdatePayload{
				TalkMode:  talkMode,
				ToFromID:  target,
				MsgText:   u.digest,
				UpdatedAt: now,
			})
		}
		ev := gateway.RevokePayload{
			TalkMode: talkMode,
			ToFromID: toFromID,
			FromID:   msg.SenderID,
			MsgID:    msgID,
		}
		for _, uid := range talkUsers {
			s.pusher.PushToUser(uid, gateway.EventMsgRevoke, ev)
		}
	})
	return nil
}

// DeleteMessages 从当前用户视角删除若干消息（对其他用户不可见的软删除），
// 并重建本用户会话快照的最后消息摘要
func (s *MessageService) DeleteMessages(ctx context.Context, currentUserID uint64, talkMode uint8, toFromID uint64, msgIDs []string) error {
	if len(msgIDs) == 0 {
		return nil
	}

	talkID, err := s.resolveTalkID(ctx, currentUserID, talkMode, toFromID)
	if err != nil {
		// 会话尚未建立则无从删除，按成功处理
		if imerr.KindOf(err) == imerr.KindNotFound {
			return nil
		}
		return err
	}

	var digest *string
	err = s.store.Transaction(ctx, func(tx storage.Store) error {
		for _, mid := range msgIDs {
			if err := tx.Messages().MarkUserDelete(ctx, mid, currentUserID); err != nil {
				return err
			}
		}

		lm, err := tx.Messages().LatestPreviewCandidate(ctx, talkID, currentUserID)
		if err != nil {
			return err
		}
		if lm != nil {
			d := messageDigest(lm.MsgType, lm.ContentText)
			digest = &d
			return tx.Sessions().UpdateLastMsg(ctx, currentUserID, talkID, &storage.LastMsg{
				MsgID:    lm.ID,
				MsgType:  lm.MsgType,
				SenderID: lm.SenderID,
				Digest:   d,
			})
		}
		return tx.Sessions().UpdateLastMsg(ctx, currentUserID, talkID, nil)
	})
	if err != nil {
		return err
	}

	s.submit(func() {
		s.pusher.PushToUser(currentUserID, gateway.EventSessionUpdate, gateway.SessionUpdatePayload{
			TalkMode:  talkMode,
			ToFromID:  toFromID,
			MsgText:   digest,
			UpdatedAt: time.Now().UnixMilli(),
		})
	})
	return nil
}

// DeleteAllMessagesInTalk 清空当前用户在某会话中的全部消息视图，
// 同时软删除该会话快照
func (s *MessageService) DeleteAllMessagesInTalk(ctx context.Context, currentUserID uint64, talkMode uint8, toFromID uint64) error {
	talkID, err := s.resolveTalkID(ctx, currentUserID, talkMode, toFromID)
	if err != nil {
		if imerr.KindOf(err) == imerr.KindNotFound {
			return nil
		}
		return err
	}

	err = s.store.Transaction(ctx, func(tx storage.Store) error {
		if err := tx.Messages().MarkAllUserDeleteInTalk(ctx, talkID, currentUserID); err != nil {
			return err
		}
		if err := tx.Sessions().UpdateLastMsg(ctx, currentUserID, talkID, nil); err != nil {
			return err
		}
		return tx.Sessions().SoftDelete(ctx, currentUserID, talkID)
	})
	if err != nil {
		return err
	}

	s.submit(func() {
		s.pusher.PushToUser(currentUserID, gateway.EventSessionUpdate, gateway.SessionUpdatePayload{
			TalkMode:  talkMode,
			ToFromID:  toFromID,
			MsgText:   nil,
			UpdatedAt: time.Now().UnixMilli(),
		})
	})
	return nil
}

// LoadRecords 倒序分页加载会话消息，过滤当前用户已删除的消息。
// 会话尚未建立时返回空页而非错误。
func (s *MessageService) LoadRecords(ctx context.Context, currentUserID uint64, talkMode uint8, toFromID, cursor uint64, limit int) (*MessageRecordPage, error) {
	return s.loadPage(ctx, currentUserID, talkMode, toFromID, cursor, limit, 0)
}

// LoadHistoryRecords 与 LoadRecords 相同，但可按消息类型过滤
func (s *MessageService) LoadHistoryRecords(ctx context.Context, currentUserID uint64, talkMode uint8, toFromID uint64, msgType uint16, cursor uint64, limit int) (*MessageRecordPage, error) {
	return s.loadPage(ctx, currentUserID, talkMode, toFromID, cursor, limit, msgType)
}

func (s *MessageService) loadPage(ctx context.Context, currentUserID uint64, talkMode uint8, toFromID, cursor uint64, limit int, msgType uint16) (*MessageRecordPage, error) {
	if limit <= 0 {
		limit = 30
	} else if limit > 200 {
		limit = 200
	}

	page := &MessageRecordPage{Items: []MessageRecord{}, Cursor: cursor}
	talkID, err := s.resolveTalkID(ctx, currentUserID, talkMode, toFromID)
	if err != nil {
		if imerr.KindOf(err) == imerr.KindNotFound {
			return page, nil
		}
		return nil, err
	}

	msgs, err := s.store.Messages().ListRecentDescFiltered(ctx, talkID, cursor, limit, currentUserID, msgType)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		page.Items = append(page.Items, s.buildRecord(ctx, &msgs[i]))
	}
	if len(page.Items) > 0 {
		page.Cursor = page.Items[len(page.Items)-1].Sequence
	}
	return page, nil
}

// LoadForwardRecords 加载转发消息的原始记录，不存在的 ID 静默跳过
func (s *MessageService) LoadForwardRecords(ctx context.Context, currentUserID uint64, msgIDs []string) ([]MessageRecord, error) {
	records := []MessageRecord{}
	if len(msgIDs) == 0 {
		return records, nil
	}
	msgs, err := s.store.Messages().GetByIDs(ctx, msgIDs)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		records = append(records, s.buildRecord(ctx, &msgs[i]))
	}
	return records, nil
}

// submit 把推送任务丢进工作池，池不可用时同步执行
func (s *MessageService) submit(job func()) {
	if s.pool != nil {
		s.pool.Submit(job)
		return
	}
	job()
}
