package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/imerr"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/models"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/storage"
)

// fakeStore is an in-memory storage.Store used to exercise the services
// without a database. Transaction takes a snapshot of the whole state and
// restores it when the callback fails, mirroring a rollback.
type fakeStore struct {
	mu sync.Mutex

	talks      map[talkKey]uint64
	sequences  map[uint64]uint64
	nextTalkID uint64

	messages    map[string]*models.Message
	userDeletes map[userMsgKey]bool
	mentions    map[string][]uint64
	forwards    []models.MessageForward
	reads       map[userMsgKey]bool

	sessions      map[sessionKey]*models.TalkSession
	nextSessionID uint64

	users    map[uint64]*models.User
	contacts map[contactKey]string

	failAddMentions bool
}

type talkKey struct {
	mode    uint8
	min     uint64
	max     uint64
	groupID uint64
}

type userMsgKey struct {
	msgID  string
	userID uint64
}

type sessionKey struct {
	userID uint64
	talkID uint64
}

type contactKey struct {
	ownerID  uint64
	targetID uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		talks:       make(map[talkKey]uint64),
		sequences:   make(map[uint64]uint64),
		messages:    make(map[string]*models.Message),
		userDeletes: make(map[userMsgKey]bool),
		mentions:    make(map[string][]uint64),
		reads:       make(map[userMsgKey]bool),
		sessions:    make(map[sessionKey]*models.TalkSession),
		users:       make(map[uint64]*models.User),
		contacts:    make(map[contactKey]string),
	}
}

func (f *fakeStore) addUser(id uint64, nickname, avatar string) {
	f.users[id] = &models.User{ID: id, Nickname: nickname, Avatar: avatar}
}

func (f *fakeStore) snapshot() *fakeStore {
	s := newFakeStore()
	for k, v := range f.talks {
		s.talks[k] = v
	}
	for k, v := range f.sequences {
		s.sequences[k] = v
	}
	s.nextTalkID = f.nextTalkID
	for k, v := range f.messages {
		m := *v
		s.messages[k] = &m
	}
	for k, v := range f.userDeletes {
		s.userDeletes[k] = v
	}
	for k, v := range f.mentions {
		s.mentions[k] = append([]uint64(nil), v...)
	}
	s.forwards = append([]models.MessageForward(nil), f.forwards...)
	for k, v := range f.reads {
		s.reads[k] = v
	}
	for k, v := range f.sessions {
		sess := *v
		s.sessions[k] = &sess
	}
	s.nextSessionID = f.nextSessionID
	return s
}

func (f *fakeStore) restore(s *fakeStore) {
	f.talks = s.talks
	f.sequences = s.sequences
	f.nextTalkID = s.nextTalkID
	f.messages = s.messages
	f.userDeletes = s.userDeletes
	f.mentions = s.mentions
	f.forwards = s.forwards
	f.reads = s.reads
	f.sessions = s.sessions
	f.nextSessionID = s.nextSessionID
}

func (f *fakeStore) Talks() storage.TalkRepo       { return (*fakeTalkRepo)(f) }
func (f *fakeStore) Messages() storage.MessageRepo { return (*fakeMessageRepo)(f) }
func (f *fakeStore) Sessions() storage.SessionRepo { return (*fakeSessionRepo)(f) }
func (f *fakeStore) Users() storage.UserRepo       { return (*fakeUserRepo)(f) }

func (f *fakeStore) Transaction(ctx context.Context, fn func(tx storage.Store) error) error {
	f.mu.Lock()
	snap := f.snapshot()
	f.mu.Unlock()
	if err := fn(f); err != nil {
		f.mu.Lock()
		f.restore(snap)
		f.mu.Unlock()
		return err
	}
	return nil
}

// --- talks ---

type fakeTalkRepo fakeStore

func singleKey(a, b uint64) talkKey {
	if a > b {
		a, b = b, a
	}
	return talkKey{mode: models.TalkModeSingle, min: a, max: b}
}

func (f *fakeTalkRepo) findOrCreate(key talkKey) uint64 {
	if id, ok := f.talks[key]; ok {
		return id
	}
	f.nextTalkID++
	f.talks[key] = f.nextTalkID
	return f.nextTalkID
}

func (f *fakeTalkRepo) FindOrCreateSingle(ctx context.Context, userA, userB uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findOrCreate(singleKey(userA, userB)), nil
}

func (f *fakeTalkRepo) FindOrCreateGroup(ctx context.Context, groupID uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findOrCreate(talkKey{mode: models.TalkModeGroup, groupID: groupID}), nil
}

func (f *fakeTalkRepo) GetSingleTalkID(ctx context.Context, userA, userB uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.talks[singleKey(userA, userB)]; ok {
		return id, nil
	}
	return 0, imerr.NotFound("会话不存在")
}

func (f *fakeTalkRepo) GetGroupTalkID(ctx context.Context, groupID uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.talks[talkKey{mode: models.TalkModeGroup, groupID: groupID}]; ok {
		return id, nil
	}
	return 0, imerr.NotFound("会话不存在")
}

func (f *fakeTalkRepo) NextSequence(ctx context.Context, talkID uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequences[talkID]++
	return f.sequences[talkID], nil
}

// --- messages ---

type fakeMessageRepo fakeStore

func (f *fakeMessageRepo) Create(ctx context.Context, m *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.messages[m.ID]; exists {
		return imerr.Storage("消息写入失败", errors.New("duplicate id"))
	}
	cp := *m
	f.messages[m.ID] = &cp
	return nil
}

func (f *fakeMessageRepo) GetByID(ctx context.Context, msgID string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.messages[msgID]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, imerr.NotFound("消息不存在")
}

func (f *fakeMessageRepo) GetByIDs(ctx context.Context, msgIDs []string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, id := range msgIDs {
		if m, ok := f.messages[id]; ok {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) Revoke(ctx context.Context, msgID string, by uint64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[msgID]
	if !ok {
		return imerr.NotFound("消息不存在")
	}
	m.IsRevoked = models.MsgRevoked
	m.RevokeBy = by
	m.RevokeTime = at.Unix()
	return nil
}

func (f *fakeMessageRepo) ListRecentDescFiltered(ctx context.Context, talkID, anchorSeq uint64, limit int, viewerID uint64, msgType uint16) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, m := range f.messages {
		if m.TalkID != talkID {
			continue
		}
		if anchorSeq > 0 && m.Sequence >= anchorSeq {
			continue
		}
		if msgType != 0 && m.MsgType != msgType {
			continue
		}
		if f.userDeletes[userMsgKey{msgID: m.ID, userID: viewerID}] {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence > out[j].Sequence })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMessageRepo) LatestPreviewCandidate(ctx context.Context, talkID, viewerID uint64) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.Message
	for _, m := range f.messages {
		if m.TalkID != talkID || m.IsRevoked == models.MsgRevoked {
			continue
		}
		if f.userDeletes[userMsgKey{msgID: m.ID, userID: viewerID}] {
			continue
		}
		if best == nil || m.Sequence > best.Sequence {
			best = m
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (f *fakeMessageRepo) MarkUserDelete(ctx context.Context, msgID string, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userDeletes[userMsgKey{msgID: msgID, userID: userID}] = true
	return nil
}

func (f *fakeMessageRepo) MarkAllUserDeleteInTalk(ctx context.Context, talkID, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.TalkID == talkID {
			f.userDeletes[userMsgKey{msgID: m.ID, userID: userID}] = true
		}
	}
	return nil
}

func (f *fakeMessageRepo) AddMentions(ctx context.Context, msgID string, userIDs []uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAddMentions {
		return imerr.Storage("提及记录保存失败", errors.New("forced failure"))
	}
	f.mentions[msgID] = append(f.mentions[msgID], userIDs...)
	return nil
}

func (f *fakeMessageRepo) GetMentions(ctx context.Context, msgID string) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.mentions[msgID]...), nil
}

func (f *fakeMessageRepo) AddForwardSources(ctx context.Context, rows []models.MessageForward) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwards = append(f.forwards, rows...)
	return nil
}

func (f *fakeMessageRepo) MarkRead(ctx context.Context, msgID string, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads[userMsgKey{msgID: msgID, userID: userID}] = true
	return nil
}

func (f *fakeMessageRepo) MarkReadByTalk(ctx context.Context, talkID, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.TalkID == talkID && m.SenderID != userID {
			f.reads[userMsgKey{msgID: m.ID, userID: userID}] = true
		}
	}
	return nil
}

// --- sessions ---

type fakeSessionRepo fakeStore

func (f *fakeSessionRepo) Get(ctx context.Context, userID, talkID uint64) (*models.TalkSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[sessionKey{userID: userID, talkID: talkID}]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, imerr.NotFound("会话视图不存在")
}

func (f *fakeSessionRepo) CreateOrRestore(ctx context.Context, s *models.TalkSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := sessionKey{userID: s.UserID, talkID: s.TalkID}
	if existing, ok := f.sessions[key]; ok {
		existing.IsDeleted = models.FlagNo
		if s.Name != "" {
			existing.Name = s.Name
		}
		if s.Avatar != "" {
			existing.Avatar = s.Avatar
		}
		if s.Remark != "" {
			existing.Remark = s.Remark
		}
		existing.UpdatedAt = time.Now()
		return nil
	}
	f.nextSessionID++
	cp := *s
	cp.ID = f.nextSessionID
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = time.Now()
	f.sessions[key] = &cp
	return nil
}

func (f *fakeSessionRepo) BumpOnNewMessage(ctx context.Context, talkID, senderID uint64, last storage.LastMsg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.TalkID != talkID || s.IsDeleted != models.FlagNo {
			continue
		}
		s.LastMsgID = last.MsgID
		s.LastMsgType = last.MsgType
		s.LastSenderID = last.SenderID
		s.LastMsgDigest = last.Digest
		s.UpdatedAt = time.Now()
		if s.UserID != senderID {
			s.UnreadNum++
		}
	}
	return nil
}

func (f *fakeSessionRepo) UpdateLastMsg(ctx context.Context, userID, talkID uint64, last *storage.LastMsg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionKey{userID: userID, talkID: talkID}]
	if !ok {
		return nil
	}
	if last == nil {
		s.LastMsgID = ""
		s.LastMsgType = 0
		s.LastSenderID = 0
		s.LastMsgDigest = ""
	} else {
		s.LastMsgID = last.MsgID
		s.LastMsgType = last.MsgType
		s.LastSenderID = last.SenderID
		s.LastMsgDigest = last.Digest
	}
	s.UpdatedAt = time.Now()
	return nil
}

func (f *fakeSessionRepo) ListUsersByLastMsg(ctx context.Context, talkID uint64, msgID string) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uint64
	for _, s := range f.sessions {
		if s.TalkID == talkID && s.LastMsgID == msgID && s.IsDeleted == models.FlagNo {
			out = append(out, s.UserID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (f *fakeSessionRepo) ListUsersByTalkID(ctx context.Context, talkID uint64) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uint64
	for _, s := range f.sessions {
		if s.TalkID == talkID && s.IsDeleted == models.FlagNo {
			out = append(out, s.UserID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (f *fakeSessionRepo) ListByUserID(ctx context.Context, userID uint64) ([]models.TalkSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TalkSession
	for _, s := range f.sessions {
		if s.UserID == userID && s.IsDeleted == models.FlagNo {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsTop != out[j].IsTop {
			return out[i].IsTop < out[j].IsTop
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (f *fakeSessionRepo) ClearUnread(ctx context.Context, userID, talkID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[sessionKey{userID: userID, talkID: talkID}]; ok {
		s.UnreadNum = 0
	}
	return nil
}

func (f *fakeSessionRepo) setFlag(userID, talkID uint64, apply func(*models.TalkSession)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionKey{userID: userID, talkID: talkID}]
	if !ok {
		return imerr.NotFound("会话视图不存在")
	}
	apply(s)
	s.UpdatedAt = time.Now()
	return nil
}

func (f *fakeSessionRepo) SetTop(ctx context.Context, userID, talkID uint64, top bool) error {
	return f.setFlag(userID, talkID, func(s *models.TalkSession) {
		if top {
			s.IsTop = models.FlagYes
		} else {
			s.IsTop = models.FlagNo
		}
	})
}

func (f *fakeSessionRepo) SetDisturb(ctx context.Context, userID, talkID uint64, disturb bool) error {
	return f.setFlag(userID, talkID, func(s *models.TalkSession) {
		if disturb {
			s.IsDisturb = models.FlagYes
		} else {
			s.IsDisturb = models.FlagNo
		}
	})
}

func (f *fakeSessionRepo) SoftDelete(ctx context.Context, userID, talkID uint64) error {
	return f.setFlag(userID, talkID, func(s *models.TalkSession) {
		s.IsDeleted = models.FlagYes
	})
}

// --- users ---

type fakeUserRepo fakeStore

func (f *fakeUserRepo) GetUserSimple(ctx context.Context, userID uint64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, imerr.NotFound("用户不存在")
}

func (f *fakeUserRepo) GetContactRemark(ctx context.Context, ownerID, targetID uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contacts[contactKey{ownerID: ownerID, targetID: targetID}], nil
}
