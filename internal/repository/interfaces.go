package repository

import (
	"context"

	"github.com/loopchat/chatd/internal/domain"
)

// UserRepository exposes persistence for chat users. Lookups report a
// missing row by wrapping pgx.ErrNoRows so callers can distinguish absence
// from storage failure with errors.Is.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID int64) (domain.User, error)
	// Create inserts the user in a single statement; the store assigns id
	// and created_at. A concurrent insert of the same email surfaces as
	// *domain.EmailExistsError via the unique constraint.
	Create(ctx context.Context, user domain.User) (domain.User, error)
}

// WorkspaceRepository exposes persistence for workspaces. All mutual
// exclusion relies on the store's single-statement atomicity: a
// unique-constrained insert for creation and a conditional update for
// owner assignment.
type WorkspaceRepository interface {
	// Create inserts an unowned workspace. A losing concurrent creator
	// observes ErrWorkspaceExists, never a duplicate row.
	Create(ctx context.Context, name string) (domain.Workspace, error)
	GetByName(ctx context.Context, name string) (domain.Workspace, error)
	GetByID(ctx context.Context, workspaceID int64) (domain.Workspace, error)
	// AssignOwner performs the single owner transition. It succeeds only
	// when the workspace is still unowned and ownerID belongs to it; the
	// bool reports whether this call won the transition.
	AssignOwner(ctx context.Context, workspaceID, ownerID int64) (domain.Workspace, bool, error)
	// ListMembers returns member projections sorted ascending by id.
	ListMembers(ctx context.Context, workspaceID int64) ([]domain.Member, error)
}
