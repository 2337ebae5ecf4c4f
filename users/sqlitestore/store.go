// Package sqlitestore persists identities and refresh tokens in SQLite.
package sqlitestore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/jrsteele09/oamanage-auth/internal/errors"
	"github.com/jrsteele09/oamanage-auth/users"
	pkgerrors "github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

var _ users.Repo = (*Store)(nil)

const identityColumns = `id, provider, external_id, nickname, email, profile_image, role, score, password_hash`

type Store struct {
	db *sql.DB
}

// New opens dsn and applies pending migrations.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// An in-memory database exists per connection.
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, pkgerrors.Wrap(err, "sqlitestore.New ApplyMigrations")
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) FindByID(ctx context.Context, id int64) (*users.Identity, error) {
	return findOne(ctx, s.db, `SELECT `+identityColumns+` FROM identities WHERE id = ?`, id)
}

func (s *Store) FindByProviderEmail(ctx context.Context, provider users.Provider, email string) (*users.Identity, error) {
	if email == "" {
		return nil, errors.ErrNotFound
	}
	return findOne(ctx, s.db,
		`SELECT `+identityColumns+` FROM identities WHERE provider = ? AND email = ? COLLATE NOCASE ORDER BY id LIMIT 1`,
		string(provider), email)
}

func (s *Store) FindByExternalID(ctx context.Context, provider users.Provider, externalID string) (*users.Identity, error) {
	if externalID == "" {
		return nil, errors.ErrNotFound
	}
	return findOne(ctx, s.db,
		`SELECT `+identityColumns+` FROM identities WHERE provider = ? AND external_id = ?`,
		string(provider), externalID)
}

func (s *Store) Upsert(ctx context.Context, identity *users.Identity) (*users.Identity, error) {
	if identity == nil {
		return nil, errors.ErrInvalidInput
	}

	var result *users.Identity
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		existing, err := findOne(ctx, tx, `SELECT `+identityColumns+` FROM identities WHERE id = ?`, identity.ID)
		switch {
		case err == nil:
			result = users.Merge(existing, identity)
			_, err = tx.ExecContext(ctx, `UPDATE identities SET
				provider = ?, external_id = ?, nickname = ?, email = ?, profile_image = ?,
				role = ?, score = ?, password_hash = ?, updated_at = CURRENT_TIMESTAMP
				WHERE id = ?`,
				string(result.Provider), nullString(result.ExternalID), result.Nickname,
				result.Email, result.ProfileImage, string(result.Role), result.Score,
				result.PasswordHash, result.ID)
			return pkgerrors.Wrap(err, "update identity")
		case errors.Is(err, errors.ErrNotFound):
			result = identity.Clone()
			result.Role = users.RoleOrDefault(result.Role)
			var id any
			if result.ID != 0 {
				id = result.ID
			}
			res, err := tx.ExecContext(ctx, `INSERT INTO identities
				(id, provider, external_id, nickname, email, profile_image, role, score, password_hash)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, string(result.Provider), nullString(result.ExternalID), result.Nickname,
				result.Email, result.ProfileImage, string(result.Role), result.Score, result.PasswordHash)
			if err != nil {
				return pkgerrors.Wrap(err, "insert identity")
			}
			result.ID, err = res.LastInsertId()
			return err
		default:
			return err
		}
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "sqlitestore.Upsert")
	}
	return result, nil
}

// UpsertExternal relies on the (provider, external_id) unique index, so
// concurrent first logins converge on one row. The update clause follows
// users.MergeExternalLogin.
func (s *Store) UpsertExternal(ctx context.Context, incoming *users.Identity) (*users.Identity, error) {
	if incoming == nil || incoming.ExternalID == "" {
		return nil, errors.ErrInvalidInput
	}

	created := users.NewExternalIdentity(incoming)
	identity, err := findOne(ctx, s.db, `INSERT INTO identities
		(provider, external_id, nickname, email, profile_image, role, score)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, external_id) WHERE external_id IS NOT NULL DO UPDATE SET
			email = COALESCE(excluded.email, identities.email),
			profile_image = COALESCE(excluded.profile_image, identities.profile_image),
			nickname = CASE WHEN identities.nickname = '' THEN excluded.nickname ELSE identities.nickname END,
			updated_at = CURRENT_TIMESTAMP
		RETURNING `+identityColumns,
		string(created.Provider), created.ExternalID, created.Nickname,
		created.Email, created.ProfileImage, string(created.Role), created.Score)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "sqlitestore.UpsertExternal")
	}
	return identity, nil
}

func (s *Store) SaveRefreshToken(ctx context.Context, id int64, token string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE identities SET refresh_token = ? WHERE id = ?`, token, id)
	if err != nil {
		return pkgerrors.Wrap(err, "sqlitestore.SaveRefreshToken")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (s *Store) RefreshToken(ctx context.Context, id int64) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `SELECT refresh_token FROM identities WHERE id = ?`, id).Scan(&token)
	if err != nil {
		return "", mapNotFound(err)
	}
	return token, nil
}

func (s *Store) CompareAndSwapRefreshToken(ctx context.Context, id int64, current, next string) (bool, error) {
	if current == "" {
		return false, nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE identities SET refresh_token = ? WHERE id = ? AND refresh_token = ?`, next, id, current)
	if err != nil {
		return false, pkgerrors.Wrap(err, "sqlitestore.CompareAndSwapRefreshToken")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func findOne(ctx context.Context, q queryer, query string, args ...any) (*users.Identity, error) {
	var (
		identity                      users.Identity
		provider, role                string
		externalID, email, profileImg sql.NullString
		score                         sql.NullInt64
	)
	err := q.QueryRowContext(ctx, query, args...).Scan(
		&identity.ID, &provider, &externalID, &identity.Nickname, &email,
		&profileImg, &role, &score, &identity.PasswordHash,
	)
	if err != nil {
		return nil, mapNotFound(err)
	}

	identity.Provider = users.Provider(provider)
	identity.Role = users.Role(role)
	identity.ExternalID = externalID.String
	if email.Valid {
		identity.Email = &email.String
	}
	if profileImg.Valid {
		identity.ProfileImage = &profileImg.String
	}
	if score.Valid {
		v := int(score.Int64)
		identity.Score = &v
	}
	return &identity, nil
}

func mapNotFound(err error) error {
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.ErrNotFound
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
