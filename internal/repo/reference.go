package repo

import (
	"context"
	"database/sql"

	"conciera/internal/domain"
)

// GetValidationStatusByCode resolves a validation code ("verifie-agent",
// "probleme", ...) to its reference row. Callers must treat ErrNotFound as
// fatal for the operation at hand: saving with a missing status reference
// is never allowed.
func (r Repo) GetValidationStatusByCode(ctx context.Context, code string) (domain.ValidationStatus, error) {
	var v domain.ValidationStatus
	err := r.DB.QueryRowContext(ctx, `SELECT id,code,nom FROM validations_check_menage WHERE code=?`, code).
		Scan(&v.ID, &v.Code, &v.Name)
	if err == sql.ErrNoRows {
		return v, ErrNotFound
	}
	return v, err
}

func (r Repo) GetTaskTypeByCode(ctx context.Context, code string) (domain.TaskType, error) {
	var t domain.TaskType
	err := r.DB.QueryRowContext(ctx, `SELECT id,code,nom FROM types_menage WHERE code=?`, code).
		Scan(&t.ID, &t.Code, &t.Name)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) ListValidationStatuses(ctx context.Context) ([]domain.ValidationStatus, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,code,nom FROM validations_check_menage ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ValidationStatus
	for rows.Next() {
		var v domain.ValidationStatus
		if err := rows.Scan(&v.ID, &v.Code, &v.Name); err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

func (r Repo) ListTaskTypes(ctx context.Context) ([]domain.TaskType, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,code,nom FROM types_menage ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TaskType
	for rows.Next() {
		var t domain.TaskType
		if err := rows.Scan(&t.ID, &t.Code, &t.Name); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
