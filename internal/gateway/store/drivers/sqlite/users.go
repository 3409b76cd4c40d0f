package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/sundog-labs/authgate/internal/gateway/domain"
)

type usersRepo struct {
	db *sql.DB
}

const userColumns = `id, email, provider, provider_sub, term_agreed, agreed_at, created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByProviderSubject(ctx context.Context, provider, sub string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE provider = ? AND provider_sub = ?`, provider, sub)
	return scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, provider, provider_sub, term_agreed, agreed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Provider, u.ProviderSub, u.TermsAgreed, nullTime(u.AgreedAt), now, now)
	return mapConstraint(err)
}

func (r *usersRepo) MarkTermsAccepted(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET term_agreed = 1, agreed_at = ?, updated_at = ? WHERE id = ?`,
		now, now, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) TouchLastSeen(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET updated_at = ? WHERE id = ?`, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u        domain.User
		agreedAt sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.Provider, &u.ProviderSub,
		&u.TermsAgreed, &agreedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	if agreedAt.Valid {
		at := agreedAt.Time
		u.AgreedAt = &at
	}
	return u, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
