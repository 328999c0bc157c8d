package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"conciera/internal/domain"
)

// taskColumns selects the menage row plus its joined apartment, residence,
// type and validation references in one round-trip.
const taskColumns = `
	m.id, m.date_prevue, m.heure_debut, m.heure_fin, m.commentaire, m.commentaire_agent,
	m.remplacement_linge, m.probleme, m.photos, m.photos_agent,
	m.agent_id, m.appartement_id, m.type_menage_id, m.validation_id, m.created_by,
	m.date_verification_agent, m.date_verification_concierge, m.created_at, m.updated_at,
	a.nom, a.diminutif, a.residence_id,
	res.nom, res.diminutif, res.zone_id,
	t.code, t.nom,
	v.code, v.nom`

const taskJoins = `
	FROM menages m
	JOIN appartements a ON a.id = m.appartement_id
	JOIN residences res ON res.id = a.residence_id
	JOIN types_menage t ON t.id = m.type_menage_id
	JOIN validations_check_menage v ON v.id = m.validation_id`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var start, end, supComment, agentComment, supPhotos, agentPhotos sql.NullString
	var createdBy, agentVerified, conciergeVerified sql.NullString
	var linen, problem int
	var aptName, aptShort, aptResidenceID string
	var resName, resShort, resZoneID string
	var typeCode, typeName, valCode, valName string

	err := scan(
		&t.ID, &t.DueDate, &start, &end, &supComment, &agentComment,
		&linen, &problem, &supPhotos, &agentPhotos,
		&t.AgentID, &t.ApartmentID, &t.TypeID, &t.StatusID, &createdBy,
		&agentVerified, &conciergeVerified, &t.CreatedAt, &t.UpdatedAt,
		&aptName, &aptShort, &aptResidenceID,
		&resName, &resShort, &resZoneID,
		&typeCode, &typeName,
		&valCode, &valName,
	)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if start.Valid {
		t.StartTime = &start.String
	}
	if end.Valid {
		t.EndTime = &end.String
	}
	if supComment.Valid {
		t.SupervisorComment = &supComment.String
	}
	if agentComment.Valid {
		t.AgentComment = &agentComment.String
	}
	t.SupervisorPhotos = unmarshalStringSlice(supPhotos)
	t.AgentPhotos = unmarshalStringSlice(agentPhotos)
	t.LinenReplacement = linen != 0
	t.Problem = problem != 0
	if createdBy.Valid {
		t.CreatedBy = &createdBy.String
	}
	if agentVerified.Valid {
		t.AgentVerifiedAt = &agentVerified.String
	}
	if conciergeVerified.Valid {
		t.ConciergeVerifiedAt = &conciergeVerified.String
	}
	t.Apartment = &domain.Apartment{
		ID:          t.ApartmentID,
		Name:        aptName,
		ShortCode:   aptShort,
		ResidenceID: aptResidenceID,
		Residence: &domain.Residence{
			ID:        aptResidenceID,
			Name:      resName,
			ShortCode: resShort,
			ZoneID:    resZoneID,
		},
	}
	t.Type = &domain.TaskType{ID: t.TypeID, Code: typeCode, Name: typeName}
	t.Status = &domain.ValidationStatus{ID: t.StatusID, Code: valCode, Name: valName}
	return t, nil
}

// ListTasksByAgent returns all tasks assigned to a user, joined references
// included, ordered by due date ascending.
func (r Repo) ListTasksByAgent(ctx context.Context, agentID string) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+taskJoins+` WHERE m.agent_id=? ORDER BY m.date_prevue ASC, m.id ASC`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+taskJoins+` WHERE m.id=?`, id)
	return scanTask(row.Scan)
}

func (r Repo) InsertTask(ctx context.Context, t domain.Task) error {
	agentPhotos, err := marshalStringSlice(t.AgentPhotos)
	if err != nil {
		return err
	}
	supPhotos, err := marshalStringSlice(t.SupervisorPhotos)
	if err != nil {
		return err
	}
	linen, problem := 0, 0
	if t.LinenReplacement {
		linen = 1
	}
	if t.Problem {
		problem = 1
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO menages(id,date_prevue,heure_debut,heure_fin,commentaire,commentaire_agent,remplacement_linge,probleme,photos,photos_agent,agent_id,appartement_id,type_menage_id,validation_id,created_by,date_verification_agent,date_verification_concierge,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.DueDate, nullableStringPtr(t.StartTime), nullableStringPtr(t.EndTime),
		nullableStringPtr(t.SupervisorComment), nullableStringPtr(t.AgentComment),
		linen, problem, nullableStringPtr(supPhotos), nullableStringPtr(agentPhotos),
		t.AgentID, t.ApartmentID, t.TypeID, t.StatusID, nullableStringPtr(t.CreatedBy),
		nullableStringPtr(t.AgentVerifiedAt), nullableStringPtr(t.ConciergeVerifiedAt),
		t.CreatedAt, t.UpdatedAt)
	return err
}

// TaskPatch is a partial update of the agent-writable task fields. Nil
// pointers are left untouched; Clear* flags write NULL explicitly.
type TaskPatch struct {
	StartTime       *string
	ClearStartTime  bool
	EndTime         *string
	ClearEndTime    bool
	AgentComment    *string
	ClearComment    bool
	AgentPhotos     []string
	ClearPhotos     bool
	StatusID        *string
	Problem         *bool
	AgentVerifiedAt *string
	UpdatedAt       string
}

// UpdateTask writes the patch plus a refreshed updated_at, keyed by task id.
// Returns ErrNotFound when the row does not exist.
func (r Repo) UpdateTask(ctx context.Context, id string, p TaskPatch) error {
	var (
		fields []string
		args   []any
	)
	set := func(col string, v any) {
		fields = append(fields, col+"=?")
		args = append(args, v)
	}
	if p.StartTime != nil {
		set("heure_debut", nullable(*p.StartTime))
	} else if p.ClearStartTime {
		set("heure_debut", nil)
	}
	if p.EndTime != nil {
		set("heure_fin", nullable(*p.EndTime))
	} else if p.ClearEndTime {
		set("heure_fin", nil)
	}
	if p.AgentComment != nil {
		set("commentaire_agent", nullable(*p.AgentComment))
	} else if p.ClearComment {
		set("commentaire_agent", nil)
	}
	if p.AgentPhotos != nil {
		photos, err := marshalStringSlice(p.AgentPhotos)
		if err != nil {
			return err
		}
		set("photos_agent", nullableStringPtr(photos))
	} else if p.ClearPhotos {
		set("photos_agent", nil)
	}
	if p.StatusID != nil {
		set("validation_id", *p.StatusID)
	}
	if p.Problem != nil {
		v := 0
		if *p.Problem {
			v = 1
		}
		set("probleme", v)
	}
	if p.AgentVerifiedAt != nil {
		set("date_verification_agent", *p.AgentVerifiedAt)
	}
	if p.UpdatedAt == "" {
		return fmt.Errorf("updated_at required")
	}
	set("updated_at", p.UpdatedAt)

	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE menages SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
