// Package memory is an in-process implementation of repository.Store.
// Transactions are serialized behind one mutex and roll back by restoring
// a snapshot, which makes every transaction trivially serializable.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/spark/internal/domain"
	"github.com/vedran77/spark/internal/repository"
)

type likeKey struct {
	from, to string
}

type data struct {
	connections map[string]domain.Connection
	users       map[string]domain.User
	chats       map[string]domain.Chat
	messages    map[uuid.UUID]domain.Message
	likes       map[likeKey]domain.Like
}

func newData() *data {
	return &data{
		connections: make(map[string]domain.Connection),
		users:       make(map[string]domain.User),
		chats:       make(map[string]domain.Chat),
		messages:    make(map[uuid.UUID]domain.Message),
		likes:       make(map[likeKey]domain.Like),
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.connections {
		c.connections[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.chats {
		c.chats[k] = copyChat(v)
	}
	for k, v := range d.messages {
		c.messages[k] = v
	}
	for k, v := range d.likes {
		c.likes[k] = v
	}
	return c
}

func copyChat(c domain.Chat) domain.Chat {
	c.Participants = append([]string(nil), c.Participants...)
	unread := make(map[string]int, len(c.UnreadCount))
	for k, v := range c.UnreadCount {
		unread[k] = v
	}
	c.UnreadCount = unread
	if c.LastMessageTime != nil {
		t := *c.LastMessageTime
		c.LastMessageTime = &t
	}
	return c
}

type Store struct {
	mu       sync.Mutex
	d        *data
	txErrors []error
}

func NewStore() *Store {
	return &Store{d: newData()}
}

// SeedUser adds or replaces a profile row.
func (s *Store) SeedUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.users[u.ID] = u
}

// InjectTxErrors makes the next len(errs) calls to WithTx fail with the
// given errors, in order, without running their function.
func (s *Store) InjectTxErrors(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txErrors = append(s.txErrors, errs...)
}

func (s *Store) Repos() repository.Repos {
	return s.repos(false)
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(s.txErrors) > 0 {
		err := s.txErrors[0]
		s.txErrors = s.txErrors[1:]
		return err
	}

	snapshot := s.d.clone()
	if err := fn(ctx, s.repos(true)); err != nil {
		s.d = snapshot
		return err
	}
	return nil
}

func (s *Store) Close() {}

func (s *Store) repos(inTx bool) repository.Repos {
	v := &view{s: s, inTx: inTx}
	return repository.Repos{
		Connections: &connectionRepo{v},
		Users:       &userRepo{v},
		Chats:       &chatRepo{v},
		Messages:    &messageRepo{v},
		Likes:       &likeRepo{v},
	}
}

// view gives repositories access to the data. Outside a transaction every
// call takes the store lock; inside one the lock is already held.
type view struct {
	s    *Store
	inTx bool
}

func (v *view) lock() func() {
	if v.inTx {
		return func() {}
	}
	v.s.mu.Lock()
	return v.s.mu.Unlock
}

type connectionRepo struct{ *view }

func (r *connectionRepo) Upsert(ctx context.Context, conn *domain.Connection) error {
	defer r.lock()()
	r.s.d.connections[conn.ID] = *conn
	return nil
}

func (r *connectionRepo) Delete(ctx context.Context, connectionID string) error {
	defer r.lock()()
	delete(r.s.d.connections, connectionID)
	return nil
}

func (r *connectionRepo) GetByID(ctx context.Context, connectionID string) (*domain.Connection, error) {
	defer r.lock()()
	conn, ok := r.s.d.connections[connectionID]
	if !ok {
		return nil, nil
	}
	return &conn, nil
}

func (r *connectionRepo) ListByUser(ctx context.Context, userID string) ([]domain.Connection, error) {
	defer r.lock()()
	var conns []domain.Connection
	for _, c := range r.s.d.connections {
		if c.UserID == userID {
			conns = append(conns, c)
		}
	}
	sort.Slice(conns, func(i, j int) bool {
		if conns[i].CreatedAt.Equal(conns[j].CreatedAt) {
			return conns[i].ID < conns[j].ID
		}
		return conns[i].CreatedAt.Before(conns[j].CreatedAt)
	})
	return conns, nil
}

func (r *connectionRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	defer r.lock()()
	var n int64
	for id, c := range r.s.d.connections {
		if c.CreatedAt.Before(cutoff) {
			delete(r.s.d.connections, id)
			n++
		}
	}
	return n, nil
}

type userRepo struct{ *view }

func (r *userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	defer r.lock()()
	u, ok := r.s.d.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

type chatRepo struct{ *view }

func (r *chatRepo) Upsert(ctx context.Context, chat *domain.Chat) (bool, error) {
	defer r.lock()()
	existing, ok := r.s.d.chats[chat.ID]
	if ok {
		if chat.IsMatchChat && !existing.IsMatchChat {
			existing.IsMatchChat = true
			r.s.d.chats[chat.ID] = existing
		}
		return false, nil
	}
	r.s.d.chats[chat.ID] = copyChat(*chat)
	return true, nil
}

func (r *chatRepo) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	defer r.lock()()
	chat, ok := r.s.d.chats[id]
	if !ok {
		return nil, nil
	}
	c := copyChat(chat)
	return &c, nil
}

func (r *chatRepo) ListByUser(ctx context.Context, userID string) ([]domain.Chat, error) {
	defer r.lock()()
	var chats []domain.Chat
	for _, c := range r.s.d.chats {
		if c.HasParticipant(userID) {
			chats = append(chats, copyChat(c))
		}
	}
	sort.Slice(chats, func(i, j int) bool {
		a, b := chats[i].LastMessageTime, chats[j].LastMessageTime
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return chats[i].CreatedAt.After(chats[j].CreatedAt)
	})
	return chats, nil
}

func (r *chatRepo) UpdateSummary(ctx context.Context, chatID, lastMessage string, at time.Time, recipientID string) error {
	defer r.lock()()
	chat, ok := r.s.d.chats[chatID]
	if !ok {
		return nil
	}
	chat.LastMessage = lastMessage
	chat.LastMessageTime = &at
	if chat.UnreadCount == nil {
		chat.UnreadCount = make(map[string]int)
	}
	chat.UnreadCount[recipientID]++
	r.s.d.chats[chatID] = chat
	return nil
}

func (r *chatRepo) ResetUnread(ctx context.Context, chatID, userID string) error {
	defer r.lock()()
	chat, ok := r.s.d.chats[chatID]
	if !ok {
		return nil
	}
	if chat.UnreadCount == nil {
		chat.UnreadCount = make(map[string]int)
	}
	chat.UnreadCount[userID] = 0
	r.s.d.chats[chatID] = chat
	return nil
}

type messageRepo struct{ *view }

func (r *messageRepo) Create(ctx context.Context, msg *domain.Message) error {
	defer r.lock()()
	r.s.d.messages[msg.ID] = *msg
	return nil
}

func (r *messageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	defer r.lock()()
	msg, ok := r.s.d.messages[id]
	if !ok {
		return nil, nil
	}
	return &msg, nil
}

func (r *messageRepo) ListByChat(ctx context.Context, chatID string, before *uuid.UUID, limit int) ([]domain.Message, error) {
	defer r.lock()()

	var cutoff *domain.Message
	if before != nil {
		ref, ok := r.s.d.messages[*before]
		if !ok {
			return nil, nil
		}
		cutoff = &ref
	}

	var messages []domain.Message
	for _, m := range r.s.d.messages {
		if m.ChatID != chatID {
			continue
		}
		if cutoff != nil && !messageBefore(m, *cutoff) {
			continue
		}
		messages = append(messages, m)
	}
	sort.Slice(messages, func(i, j int) bool {
		return messageBefore(messages[i], messages[j])
	})
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

// messageBefore orders messages by (timestamp, id), matching the SQL order.
func messageBefore(a, b domain.Message) bool {
	if a.Timestamp.Equal(b.Timestamp) {
		return a.ID.String() < b.ID.String()
	}
	return a.Timestamp.Before(b.Timestamp)
}

func (r *messageRepo) MarkRead(ctx context.Context, chatID, readerID string) (int64, error) {
	defer r.lock()()
	var n int64
	for id, m := range r.s.d.messages {
		if m.ChatID == chatID && m.SenderID != readerID && !m.Read {
			m.Read = true
			r.s.d.messages[id] = m
			n++
		}
	}
	return n, nil
}

type likeRepo struct{ *view }

func (r *likeRepo) Upsert(ctx context.Context, like *domain.Like) error {
	defer r.lock()()
	r.s.d.likes[likeKey{like.FromUserID, like.ToUserID}] = *like
	return nil
}

func (r *likeRepo) Exists(ctx context.Context, fromUserID, toUserID string) (bool, error) {
	defer r.lock()()
	_, ok := r.s.d.likes[likeKey{fromUserID, toUserID}]
	return ok, nil
}

func (r *likeRepo) Delete(ctx context.Context, fromUserID, toUserID string) error {
	defer r.lock()()
	delete(r.s.d.likes, likeKey{fromUserID, toUserID})
	return nil
}
