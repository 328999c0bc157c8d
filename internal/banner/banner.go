// Package banner selects the single urgent message to surface above the
// calendar. Dismissal is session-local only: it hides the banner without
// marking the message read, so the inbox badge still counts it.
package banner

import (
	"sync"

	"conciera/internal/domain"
)

type Banner struct {
	mu        sync.Mutex
	dismissed map[string]struct{}
}

func New() *Banner {
	return &Banner{dismissed: make(map[string]struct{})}
}

// Current picks the banner message from an active inbox list: the newest
// unread urgent message that has not been dismissed this session. The list
// is expected newest first; the first match wins.
func (b *Banner) Current(active []domain.Message) (domain.Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range active {
		if m.Priority != domain.PriorityUrgent || m.Read {
			continue
		}
		if _, ok := b.dismissed[m.ID]; ok {
			continue
		}
		return m, true
	}
	return domain.Message{}, false
}

// Dismiss hides a message for the rest of the session. The read flag is
// deliberately left alone.
func (b *Banner) Dismiss(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dismissed[id] = struct{}{}
}

// Reset clears session dismissals, used when a new session starts.
func (b *Banner) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dismissed = make(map[string]struct{})
}
