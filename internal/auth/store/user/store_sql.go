package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gatehouse/internal/auth/models"
	"gatehouse/internal/platform/database"
	"gatehouse/internal/sentinel"
	id "gatehouse/pkg/domain"
)

const userColumns = "id, email, name, image, password_hash, role, created_at, updated_at"

var sortColumns = map[string]string{
	models.SortByCreatedAt: "created_at",
	models.SortByName:      "name",
	models.SortByEmail:     "email",
	models.SortByRole:      "role",
}

// SQLStore persists users in Postgres or SQLite. Queries are written with
// "?" placeholders and rebound for the pool's dialect.
type SQLStore struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewSQL(pool *database.Pool) *SQLStore {
	return &SQLStore{db: pool.DB(), dialect: pool.Dialect()}
}

func (s *SQLStore) q(query string) string {
	return s.dialect.Rebind(query)
}

func (s *SQLStore) Create(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("user is required")
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		user.ID.String(), user.Email, user.Name, user.Image, user.PasswordHash, string(user.Role),
		database.Time{Time: user.CreatedAt}, database.Time{Time: user.UpdatedAt},
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *SQLStore) Update(ctx context.Context, user *models.User) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE users
		SET email = ?, name = ?, image = ?, password_hash = ?, role = ?, updated_at = ?
		WHERE id = ?`),
		user.Email, user.Name, user.Image, user.PasswordHash, string(user.Role),
		database.Time{Time: user.UpdatedAt}, user.ID.String(),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("update user: %w", err)
	}
	return requireAffected(res, "update user")
}

func (s *SQLStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+userColumns+` FROM users WHERE id = ?`), userID.String())
	return scanUser(row, "find user by id")
}

func (s *SQLStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER(?)`), email)
	return scanUser(row, "find user by email")
}

// FindOrCreateByEmail inserts user unless email is taken, then returns the
// stored row. Concurrent callers converge on one row.
func (s *SQLStore) FindOrCreateByEmail(ctx context.Context, email string, user *models.User) (*models.User, error) {
	if user == nil {
		return nil, fmt.Errorf("user is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin user upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is a no-op
	}()

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email) DO NOTHING`),
		user.ID.String(), email, user.Name, user.Image, user.PasswordHash, string(user.Role),
		database.Time{Time: user.CreatedAt}, database.Time{Time: user.UpdatedAt},
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	row := tx.QueryRowContext(ctx, s.q(`SELECT `+userColumns+` FROM users WHERE email = ?`), email)
	found, err := scanUser(row, "find user after upsert")
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit user upsert: %w", err)
	}
	return found, nil
}

func (s *SQLStore) Delete(ctx context.Context, userID id.UserID) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM users WHERE id = ?`), userID.String())
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireAffected(res, "delete user")
}

func (s *SQLStore) List(ctx context.Context, q models.UserQuery) ([]*models.User, int, error) {
	var (
		where []string
		args  []any
	)
	if q.Role != "" {
		where = append(where, "role = ?")
		args = append(args, string(q.Role))
	}
	if q.Search != "" {
		pattern := "%" + strings.ToLower(q.Search) + "%"
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(email) LIKE ?)")
		args = append(args, pattern, pattern)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM users`+clause), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	column, ok := sortColumns[q.SortBy]
	if !ok {
		column = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(q.SortOrder, "asc") {
		order = "ASC"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = -1
		if s.dialect == database.Postgres {
			limit = 1 << 30
		}
	}

	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+userColumns+` FROM users`+clause+
		` ORDER BY `+column+` `+order+`, id `+order+` LIMIT ? OFFSET ?`),
		append(args, limit, max(q.Offset, 0))...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows, "scan user")
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}
	return users, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, op string) (*models.User, error) {
	var (
		rawID, role          string
		createdAt, updatedAt database.Time
		u                    models.User
	)
	err := row.Scan(&rawID, &u.Email, &u.Name, &u.Image, &u.PasswordHash, &role, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if u.ID, err = id.ParseUserID(rawID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if u.Role, err = models.ParseRole(role); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u.CreatedAt = createdAt.Time
	u.UpdatedAt = updatedAt.Time
	return &u, nil
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	return nil
}
