package msgstore_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"conciera/internal/db"
	"conciera/internal/domain"
	"conciera/internal/migrate"
	"conciera/internal/msgstore"
	"conciera/internal/repo"
)

const (
	sender    = "user-admin"
	recipient = "user-agent"
)

func newTestRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	r := repo.Repo{DB: conn}

	ctx := context.Background()
	created := time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC).Format(time.RFC3339)
	require.NoError(t, r.InsertUser(ctx, domain.User{
		ID: sender, AuthID: "auth-admin", FirstName: "Claire", Role: "admin", Active: true,
		CreatedAt: created,
	}))
	require.NoError(t, r.InsertUser(ctx, domain.User{
		ID: recipient, AuthID: "auth-agent", FirstName: "Marie", Role: "agent", Active: true,
		CreatedAt: created,
	}))
	return r
}

func seedMessage(t *testing.T, r repo.Repo, id string, minute int, read, archived bool, priority string) {
	t.Helper()
	created := time.Date(2025, 3, 14, 9, minute, 0, 0, time.UTC).Format(time.RFC3339)
	subject := fmt.Sprintf("sujet %s", id)
	require.NoError(t, r.InsertMessage(context.Background(), domain.Message{
		ID:          id,
		SenderID:    sender,
		RecipientID: recipient,
		Subject:     &subject,
		Body:        "corps",
		Priority:    priority,
		Read:        read,
		Archived:    archived,
		CreatedAt:   created,
	}))
}

func newLoadedStore(t *testing.T, r repo.Repo) *msgstore.Store {
	t.Helper()
	s := msgstore.New(r, zerolog.Nop())
	s.Load(context.Background(), recipient)
	require.Empty(t, s.Err())
	return s
}

func TestLoadSplitsArchiveAndCountsUnread(t *testing.T) {
	r := newTestRepo(t)
	seedMessage(t, r, "m-1", 0, false, false, domain.PriorityNormal)
	seedMessage(t, r, "m-2", 1, true, false, domain.PriorityNormal)
	seedMessage(t, r, "m-3", 2, false, true, domain.PriorityUrgent)

	s := newLoadedStore(t, r)
	require.Len(t, s.Messages(), 2)
	require.Len(t, s.Archived(), 1)
	// archived messages never count toward the badge
	require.Equal(t, 1, s.UnreadCount())
	// newest first
	require.Equal(t, "m-2", s.Messages()[0].ID)
}

func TestMarkAsReadIsIdempotent(t *testing.T) {
	r := newTestRepo(t)
	seedMessage(t, r, "m-1", 0, false, false, domain.PriorityNormal)
	s := newLoadedStore(t, r)

	require.NoError(t, s.MarkAsRead(context.Background(), "m-1"))
	require.Equal(t, 0, s.UnreadCount())
	// second call is a no-op, not an error
	require.NoError(t, s.MarkAsRead(context.Background(), "m-1"))
	require.Equal(t, 0, s.UnreadCount())

	stored, err := r.GetMessage(context.Background(), "m-1")
	require.NoError(t, err)
	require.True(t, stored.Read)
}

func TestMarkAsReadReachesArchivedMessages(t *testing.T) {
	r := newTestRepo(t)
	seedMessage(t, r, "m-1", 0, false, true, domain.PriorityNormal)
	s := newLoadedStore(t, r)

	require.NoError(t, s.MarkAsRead(context.Background(), "m-1"))
	require.True(t, s.Archived()[0].Read)

	stored, err := r.GetMessage(context.Background(), "m-1")
	require.NoError(t, err)
	require.True(t, stored.Read)
}

func TestMarkAsReadUnknownMessage(t *testing.T) {
	r := newTestRepo(t)
	s := newLoadedStore(t, r)
	require.ErrorIs(t, s.MarkAsRead(context.Background(), "nope"), repo.ErrNotFound)
}

func TestToggleArchiveMovesBetweenTabs(t *testing.T) {
	r := newTestRepo(t)
	seedMessage(t, r, "m-1", 0, false, false, domain.PriorityNormal)
	s := newLoadedStore(t, r)
	ctx := context.Background()

	require.NoError(t, s.ToggleArchive(ctx, "m-1"))
	require.Empty(t, s.Messages())
	require.Len(t, s.Archived(), 1)
	// archiving an unread message removes it from the badge
	require.Equal(t, 0, s.UnreadCount())

	require.NoError(t, s.ToggleArchive(ctx, "m-1"))
	require.Len(t, s.Messages(), 1)
	require.Empty(t, s.Archived())
	require.Equal(t, 1, s.UnreadCount())
}

func TestToggleArchiveUnknownMessage(t *testing.T) {
	r := newTestRepo(t)
	s := newLoadedStore(t, r)
	require.ErrorIs(t, s.ToggleArchive(context.Background(), "nope"), repo.ErrNotFound)
}

func TestDeleteRemovesEverywhere(t *testing.T) {
	r := newTestRepo(t)
	seedMessage(t, r, "m-1", 0, false, false, domain.PriorityNormal)
	seedMessage(t, r, "m-2", 1, false, true, domain.PriorityNormal)
	s := newLoadedStore(t, r)
	ctx := context.Background()

	require.NoError(t, s.Delete(ctx, "m-1"))
	require.NoError(t, s.Delete(ctx, "m-2"))
	require.Empty(t, s.Messages())
	require.Empty(t, s.Archived())
	require.Equal(t, 0, s.UnreadCount())

	_, err := r.GetMessage(ctx, "m-1")
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestUnarchivedOrderingKeptNewestFirst(t *testing.T) {
	r := newTestRepo(t)
	seedMessage(t, r, "old", 0, false, true, domain.PriorityNormal)
	seedMessage(t, r, "mid", 1, false, false, domain.PriorityNormal)
	seedMessage(t, r, "new", 2, false, false, domain.PriorityNormal)
	s := newLoadedStore(t, r)

	require.NoError(t, s.ToggleArchive(context.Background(), "old"))
	got := s.Messages()
	require.Len(t, got, 3)
	require.Equal(t, "new", got[0].ID)
	require.Equal(t, "mid", got[1].ID)
	require.Equal(t, "old", got[2].ID)
}
