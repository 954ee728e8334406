package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loopchat/chatd/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository      = (*PostgresUserRepo)(nil)
	_ WorkspaceRepository = (*PostgresWorkspaceRepo)(nil)
)

// ErrWorkspaceExists reports a workspace insert that lost to a concurrent
// creator of the same name.
var ErrWorkspaceExists = errors.New("workspace name already exists")

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// PostgresUserRepo implements UserRepository over a pgx pool.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const selectUserByEmailSQL = `
SELECT id, ws_id, fullname, email, password_hash, created_at
FROM users
WHERE email = $1`

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var user domain.User
	row := r.db.QueryRow(ctx, selectUserByEmailSQL, email)
	if err := row.Scan(&user.ID, &user.WorkspaceID, &user.Fullname, &user.Email, &user.PasswordHash, &user.CreatedAt); err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

const selectUserByIDSQL = `
SELECT id, ws_id, fullname, email, password_hash, created_at
FROM users
WHERE id = $1`

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	var user domain.User
	row := r.db.QueryRow(ctx, selectUserByIDSQL, userID)
	if err := row.Scan(&user.ID, &user.WorkspaceID, &user.Fullname, &user.Email, &user.PasswordHash, &user.CreatedAt); err != nil {
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

const insertUserSQL = `
INSERT INTO users (ws_id, fullname, email, password_hash)
VALUES ($1, $2, $3, $4)
RETURNING id, ws_id, fullname, email, password_hash, created_at`

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	var inserted domain.User
	row := r.db.QueryRow(ctx, insertUserSQL, user.WorkspaceID, user.Fullname, user.Email, user.PasswordHash)
	if err := row.Scan(&inserted.ID, &inserted.WorkspaceID, &inserted.Fullname, &inserted.Email, &inserted.PasswordHash, &inserted.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, &domain.EmailExistsError{Email: user.Email}
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return inserted, nil
}

// PostgresWorkspaceRepo implements WorkspaceRepository over a pgx pool.
type PostgresWorkspaceRepo struct {
	db *pgxpool.Pool
}

func NewPostgresWorkspaceRepo(pool *pgxpool.Pool) *PostgresWorkspaceRepo {
	return &PostgresWorkspaceRepo{db: pool}
}

const insertWorkspaceSQL = `
INSERT INTO workspaces (name)
VALUES ($1)
RETURNING id, name, owner_id, created_at`

func (r *PostgresWorkspaceRepo) Create(ctx context.Context, name string) (domain.Workspace, error) {
	ws, err := scanWorkspace(r.db.QueryRow(ctx, insertWorkspaceSQL, name))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Workspace{}, ErrWorkspaceExists
		}
		return domain.Workspace{}, fmt.Errorf("create workspace: %w", err)
	}
	return ws, nil
}

const selectWorkspaceByNameSQL = `
SELECT id, name, owner_id, created_at
FROM workspaces
WHERE name = $1`

func (r *PostgresWorkspaceRepo) GetByName(ctx context.Context, name string) (domain.Workspace, error) {
	ws, err := scanWorkspace(r.db.QueryRow(ctx, selectWorkspaceByNameSQL, name))
	if err != nil {
		return domain.Workspace{}, fmt.Errorf("get workspace by name: %w", err)
	}
	return ws, nil
}

const selectWorkspaceByIDSQL = `
SELECT id, name, owner_id, created_at
FROM workspaces
WHERE id = $1`

func (r *PostgresWorkspaceRepo) GetByID(ctx context.Context, workspaceID int64) (domain.Workspace, error) {
	ws, err := scanWorkspace(r.db.QueryRow(ctx, selectWorkspaceByIDSQL, workspaceID))
	if err != nil {
		return domain.Workspace{}, fmt.Errorf("get workspace by id: %w", err)
	}
	return ws, nil
}

// assignOwnerSQL is the single conditional statement behind the "first
// member becomes owner" rule. The owner_id IS NULL predicate ensures the
// transition happens at most once; the EXISTS predicate ensures the new
// owner actually belongs to the workspace.
const assignOwnerSQL = `
UPDATE workspaces w
SET owner_id = $1
WHERE w.id = $2
  AND w.owner_id IS NULL
  AND EXISTS (SELECT 1 FROM users u WHERE u.id = $1 AND u.ws_id = w.id)
RETURNING id, name, owner_id, created_at`

func (r *PostgresWorkspaceRepo) AssignOwner(ctx context.Context, workspaceID, ownerID int64) (domain.Workspace, bool, error) {
	ws, err := scanWorkspace(r.db.QueryRow(ctx, assignOwnerSQL, ownerID, workspaceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the race: the workspace already acquired an owner.
			return domain.Workspace{}, false, nil
		}
		return domain.Workspace{}, false, fmt.Errorf("assign workspace owner: %w", err)
	}
	return ws, true, nil
}

const selectMembersSQL = `
SELECT id, fullname, email
FROM users
WHERE ws_id = $1
ORDER BY id`

func (r *PostgresWorkspaceRepo) ListMembers(ctx context.Context, workspaceID int64) ([]domain.Member, error) {
	rows, err := r.db.Query(ctx, selectMembersSQL, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list workspace members: %w", err)
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.Fullname, &m.Email); err != nil {
			return nil, fmt.Errorf("scan workspace member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list workspace members: %w", err)
	}
	return members, nil
}

func scanWorkspace(row pgx.Row) (domain.Workspace, error) {
	var ws domain.Workspace
	if err := row.Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.CreatedAt); err != nil {
		return domain.Workspace{}, err
	}
	return ws, nil
}
