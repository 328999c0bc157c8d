package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"conciera/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func marshalStringSlice(in []string) (*string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func unmarshalStringSlice(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil
	}
	return out
}

func scanUser(scan func(dest ...any) error) (domain.User, error) {
	var u domain.User
	var zones sql.NullString
	var active int
	err := scan(&u.ID, &u.AuthID, &u.FirstName, &u.Role, &active, &zones, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.Active = active != 0
	u.ZoneIDs = unmarshalStringSlice(zones)
	return u, nil
}

const userColumns = `id,auth_id,prenom,role,actif,zones_assignees,created_at`

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id)
	return scanUser(row.Scan)
}

// GetUserByAuthID resolves the internal users row from an auth-identity id.
func (r Repo) GetUserByAuthID(ctx context.Context, authID string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE auth_id=?`, authID)
	return scanUser(row.Scan)
}

func (r Repo) InsertUser(ctx context.Context, u domain.User) error {
	zones, err := marshalStringSlice(u.ZoneIDs)
	if err != nil {
		return err
	}
	active := 0
	if u.Active {
		active = 1
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO users(id,auth_id,prenom,role,actif,zones_assignees,created_at) VALUES (?,?,?,?,?,?,?)`,
		u.ID, u.AuthID, u.FirstName, u.Role, active, nullableStringPtr(zones), u.CreatedAt)
	return err
}

// FindZoneAdmin selects the notification target for a zone: the active user
// with role "admin" whose assigned-zones list contains zoneID. Candidates
// are ordered by id ascending so the choice is deterministic when several
// admins share the zone.
func (r Repo) FindZoneAdmin(ctx context.Context, zoneID string) (domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE role='admin' AND actif=1 ORDER BY id ASC`)
	if err != nil {
		return domain.User{}, err
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return domain.User{}, err
		}
		for _, z := range u.ZoneIDs {
			if z == zoneID {
				return u, nil
			}
		}
	}
	if err := rows.Err(); err != nil {
		return domain.User{}, err
	}
	return domain.User{}, ErrNotFound
}

func (r Repo) InsertZone(ctx context.Context, z domain.Zone) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO zones(id,nom,created_at) VALUES (?,?,?)`,
		z.ID, z.Name, z.CreatedAt)
	return err
}

func (r Repo) InsertResidence(ctx context.Context, res domain.Residence, createdAt string) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO residences(id,nom,diminutif,zone_id,created_at) VALUES (?,?,?,?,?)`,
		res.ID, res.Name, res.ShortCode, res.ZoneID, createdAt)
	return err
}

func (r Repo) InsertApartment(ctx context.Context, a domain.Apartment, createdAt string) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO appartements(id,nom,diminutif,residence_id,created_at) VALUES (?,?,?,?,?)`,
		a.ID, a.Name, a.ShortCode, a.ResidenceID, createdAt)
	return err
}

func (r Repo) GetResidence(ctx context.Context, id string) (domain.Residence, error) {
	var res domain.Residence
	err := r.DB.QueryRowContext(ctx, `SELECT id,nom,diminutif,zone_id FROM residences WHERE id=?`, id).
		Scan(&res.ID, &res.Name, &res.ShortCode, &res.ZoneID)
	if err == sql.ErrNoRows {
		return res, ErrNotFound
	}
	return res, err
}

// ListResidencesByZones returns the residences inside the given zones,
// ordered by name. An empty zone list yields an empty result.
func (r Repo) ListResidencesByZones(ctx context.Context, zoneIDs []string) ([]domain.Residence, error) {
	if len(zoneIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(zoneIDs)), ",")
	args := make([]any, len(zoneIDs))
	for i, id := range zoneIDs {
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id,nom,diminutif,zone_id FROM residences WHERE zone_id IN (%s) ORDER BY nom ASC`, placeholders)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Residence
	for rows.Next() {
		var rs domain.Residence
		if err := rows.Scan(&rs.ID, &rs.Name, &rs.ShortCode, &rs.ZoneID); err != nil {
			return nil, err
		}
		res = append(res, rs)
	}
	return res, rows.Err()
}
