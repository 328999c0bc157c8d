package repo

import (
	"context"
	"database/sql"

	"conciera/internal/domain"
)

const messageColumns = `id,expediteur_id,destinataire_id,sujet,contenu,priorite,lu,archive,date_affichage,created_at`

func scanMessage(scan func(dest ...any) error) (domain.Message, error) {
	var m domain.Message
	var subject, displayDate sql.NullString
	var read, archived int
	err := scan(&m.ID, &m.SenderID, &m.RecipientID, &subject, &m.Body, &m.Priority, &read, &archived, &displayDate, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	if subject.Valid {
		m.Subject = &subject.String
	}
	if displayDate.Valid {
		m.DisplayDate = &displayDate.String
	}
	m.Read = read != 0
	m.Archived = archived != 0
	return m, nil
}

// ListMessagesByRecipient returns a user's messages, newest first. With
// includeArchived false only the active inbox is fetched; with it true both
// archived and non-archived rows come back and the caller splits them.
func (r Repo) ListMessagesByRecipient(ctx context.Context, recipientID string, includeArchived bool) ([]domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE destinataire_id=?`
	if !includeArchived {
		query += ` AND archive=0`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) GetMessage(ctx context.Context, id string) (domain.Message, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=?`, id)
	return scanMessage(row.Scan)
}

func (r Repo) InsertMessage(ctx context.Context, m domain.Message) error {
	read, archived := 0, 0
	if m.Read {
		read = 1
	}
	if m.Archived {
		archived = 1
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO messages(id,expediteur_id,destinataire_id,sujet,contenu,priorite,lu,archive,date_affichage,created_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.SenderID, m.RecipientID, nullableStringPtr(m.Subject), m.Body, m.Priority,
		read, archived, nullableStringPtr(m.DisplayDate), m.CreatedAt)
	return err
}

func (r Repo) SetMessageRead(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE messages SET lu=1 WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetMessageArchived(ctx context.Context, id string, archived bool) error {
	v := 0
	if archived {
		v = 1
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE messages SET archive=? WHERE id=?`, v, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteMessage(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM messages WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
