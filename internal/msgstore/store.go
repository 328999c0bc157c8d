// Package msgstore owns the cached inbox for one recipient. Active and
// archived messages are kept in separate lists; the unread counter is
// always recomputed from the active list rather than adjusted in place.
package msgstore

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"conciera/internal/domain"
	"conciera/internal/repo"
)

type Store struct {
	repo repo.Repo
	log  zerolog.Logger

	mu          sync.Mutex
	recipientID string
	active      []domain.Message
	archived    []domain.Message
	unread      int
	loading     bool
	errMsg      string
}

func New(r repo.Repo, log zerolog.Logger) *Store {
	return &Store{
		repo: r,
		log:  log.With().Str("component", "msgstore").Logger(),
	}
}

// Load replaces the cached inbox for a recipient. Both tabs come from one
// query, newest first, and are split on the archived flag here.
func (s *Store) Load(ctx context.Context, recipientID string) {
	s.mu.Lock()
	s.recipientID = recipientID
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()

	all, err := s.repo.ListMessagesByRecipient(ctx, recipientID, true)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.errMsg = err.Error()
		s.log.Error().Err(err).Str("recipient_id", recipientID).Msg("load messages failed")
		return
	}
	s.active = s.active[:0]
	s.archived = s.archived[:0]
	for _, m := range all {
		if m.Archived {
			s.archived = append(s.archived, m)
		} else {
			s.active = append(s.active, m)
		}
	}
	s.recountLocked()
	s.log.Debug().Int("active", len(s.active)).Int("archived", len(s.archived)).Msg("messages loaded")
}

func (s *Store) recountLocked() {
	n := 0
	for _, m := range s.active {
		if !m.Read {
			n++
		}
	}
	s.unread = n
}

// MarkAsRead marks one message read, whichever tab holds it. Calling it on
// an already-read message is a no-op and never reaches the backend; an
// unknown id is ErrNotFound.
func (s *Store) MarkAsRead(ctx context.Context, id string) error {
	s.mu.Lock()
	cur := findMessage(s.active, id)
	if cur == nil {
		cur = findMessage(s.archived, id)
	}
	if cur == nil {
		s.mu.Unlock()
		return repo.ErrNotFound
	}
	if cur.Read {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.repo.SetMessageRead(ctx, id); err != nil {
		s.log.Error().Err(err).Str("message_id", id).Msg("mark message read failed")
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := findMessage(s.active, id); m != nil {
		m.Read = true
	} else if m := findMessage(s.archived, id); m != nil {
		m.Read = true
	}
	s.recountLocked()
	return nil
}

func findMessage(list []domain.Message, id string) *domain.Message {
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}

// ToggleArchive flips a message between the active and archived lists.
func (s *Store) ToggleArchive(ctx context.Context, id string) error {
	s.mu.Lock()
	cur := findMessage(s.active, id)
	fromActive := cur != nil
	if cur == nil {
		cur = findMessage(s.archived, id)
	}
	if cur == nil {
		s.mu.Unlock()
		return repo.ErrNotFound
	}
	next := !cur.Archived
	s.mu.Unlock()

	if err := s.repo.SetMessageArchived(ctx, id, next); err != nil {
		s.log.Error().Err(err).Str("message_id", id).Msg("toggle archive failed")
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if fromActive {
		s.active, s.archived = moveMessage(s.active, s.archived, id, true)
	} else {
		s.archived, s.active = moveMessage(s.archived, s.active, id, false)
	}
	s.recountLocked()
	return nil
}

func moveMessage(from, to []domain.Message, id string, archived bool) ([]domain.Message, []domain.Message) {
	for i := range from {
		if from[i].ID == id {
			m := from[i]
			m.Archived = archived
			from = append(from[:i], from[i+1:]...)
			// Keep newest-first ordering in the destination list.
			to = insertByRecency(to, m)
			return from, to
		}
	}
	return from, to
}

func insertByRecency(list []domain.Message, m domain.Message) []domain.Message {
	for i := range list {
		if m.CreatedAt > list[i].CreatedAt {
			list = append(list, domain.Message{})
			copy(list[i+1:], list[i:])
			list[i] = m
			return list
		}
	}
	return append(list, m)
}

// Delete removes a message permanently from whichever list holds it.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteMessage(ctx, id); err != nil {
		s.log.Error().Err(err).Str("message_id", id).Msg("delete message failed")
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = removeMessage(s.active, id)
	s.archived = removeMessage(s.archived, id)
	s.recountLocked()
	return nil
}

func removeMessage(list []domain.Message, id string) []domain.Message {
	for i := range list {
		if list[i].ID == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Messages returns the active (non-archived) list, newest first.
func (s *Store) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.active))
	copy(out, s.active)
	return out
}

func (s *Store) Archived() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.archived))
	copy(out, s.archived)
	return out
}

func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}
