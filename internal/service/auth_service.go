package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/loopchat/chatd/internal/domain"
	"github.com/loopchat/chatd/internal/jwt"
	"github.com/loopchat/chatd/internal/metrics"
	pw "github.com/loopchat/chatd/internal/password"
	"github.com/loopchat/chatd/internal/repository"
)

// MemberCache is an optional read-through cache for workspace member
// listings. Implementations must be safe for concurrent use; a nil cache
// disables caching entirely.
type MemberCache interface {
	GetMembers(ctx context.Context, workspaceID int64) ([]domain.Member, bool, error)
	SetMembers(ctx context.Context, workspaceID int64, members []domain.Member) error
	Invalidate(ctx context.Context, workspaceID int64) error
}

// AuthService implements the signup, signin, and workspace membership
// flows. It holds no mutable state of its own: all mutual exclusion for the
// workspace-creation and owner-assignment races is delegated to the store's
// single-statement atomicity.
type AuthService struct {
	users      repository.UserRepository
	workspaces repository.WorkspaceRepository
	issuer     *jwt.Issuer
	cache      MemberCache
	metrics    metrics.Recorder
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewAuthService wires dependencies. cache and recorder may be nil.
func NewAuthService(users repository.UserRepository, workspaces repository.WorkspaceRepository, issuer *jwt.Issuer, cache MemberCache, recorder metrics.Recorder, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:      users,
		workspaces: workspaces,
		issuer:     issuer,
		cache:      cache,
		metrics:    recorder,
		logger:     logger,
		tracer:     otel.Tracer("github.com/loopchat/chatd/internal/service"),
	}
}

// AuthOutput carries the signed session token returned by signup and signin.
type AuthOutput struct {
	Token string `json:"token"`
}

// Signup registers a new user, creating the target workspace on first use
// and attempting the one-time owner assignment, then returns a signed
// session token for the created user.
func (s *AuthService) Signup(ctx context.Context, input domain.CreateUserInput) (*AuthOutput, domain.User, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Signup")
	defer span.End()

	email := strings.ToLower(strings.TrimSpace(input.Email))
	workspaceName := strings.TrimSpace(input.Workspace)
	if workspaceName == "" {
		return nil, domain.User{}, domain.ErrWorkspaceRequired
	}

	// Pre-check before any write. The unique constraint on users.email
	// still backstops a concurrent signup that slips past this read.
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		s.record(func(r metrics.Recorder) { r.SignupConflict() })
		return nil, domain.User{}, &domain.EmailExistsError{Email: email}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		span.RecordError(err)
		return nil, domain.User{}, fmt.Errorf("signup lookup email: %w", err)
	}

	ws, existed, err := s.resolveWorkspace(ctx, workspaceName)
	if err != nil {
		span.RecordError(err)
		return nil, domain.User{}, err
	}

	hashed, err := pw.Hash(input.Password)
	if err != nil {
		span.RecordError(err)
		return nil, domain.User{}, fmt.Errorf("signup hash password: %w", err)
	}

	user, err := s.users.Create(ctx, domain.User{
		WorkspaceID:  ws.ID,
		Fullname:     input.Fullname,
		Email:        email,
		PasswordHash: hashed,
	})
	if err != nil {
		if domain.IsEmailExists(err) {
			s.record(func(r metrics.Recorder) { r.SignupConflict() })
			return nil, domain.User{}, err
		}
		span.RecordError(err)
		return nil, domain.User{}, err
	}

	// First member of a fresh workspace claims ownership. Losing this race
	// is non-fatal: the user is created either way and the workspace simply
	// belongs to whoever won.
	if !ws.Owned() {
		if _, won, err := s.workspaces.AssignOwner(ctx, ws.ID, user.ID); err != nil {
			span.RecordError(err)
			s.log().Warn("owner assignment failed",
				zap.Int64("ws_id", ws.ID), zap.Int64("user_id", user.ID), zap.Error(err))
		} else if won {
			s.audit("workspace.owner.assigned", "ws_id", ws.ID, "owner_id", user.ID)
		}
	}

	s.invalidateMembers(ctx, ws.ID)

	token, err := s.issuer.Sign(user)
	if err != nil {
		span.RecordError(err)
		return nil, domain.User{}, fmt.Errorf("signup sign token: %w", err)
	}

	s.record(func(r metrics.Recorder) { r.SignupSuccess() })
	s.audit("user.signup.success", "user_id", user.ID, "ws_id", user.WorkspaceID, "ws_created", !existed)
	return &AuthOutput{Token: token}, user, nil
}

// Signin verifies credentials and returns a fresh session token. Unknown
// email and wrong password both yield domain.ErrUnauthorized.
func (s *AuthService) Signin(ctx context.Context, input domain.SigninInput) (*AuthOutput, domain.User, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Signin")
	defer span.End()

	user, ok, err := s.VerifyCredentials(ctx, input.Email, input.Password)
	if err != nil {
		span.RecordError(err)
		return nil, domain.User{}, err
	}
	if !ok {
		s.record(func(r metrics.Recorder) { r.SigninFailure() })
		return nil, domain.User{}, domain.ErrUnauthorized
	}

	token, err := s.issuer.Sign(user)
	if err != nil {
		span.RecordError(err)
		return nil, domain.User{}, fmt.Errorf("signin sign token: %w", err)
	}

	s.record(func(r metrics.Recorder) { r.SigninSuccess() })
	s.audit("user.signin.success", "user_id", user.ID, "ws_id", user.WorkspaceID)
	return &AuthOutput{Token: token}, user, nil
}

// VerifyCredentials looks up the user and checks the password against the
// stored hash. The false outcome is deliberately identical for "no such
// email" and "wrong password"; only storage or hash-format failures return
// a non-nil error.
func (s *AuthService) VerifyCredentials(ctx context.Context, email, password string) (domain.User, bool, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, fmt.Errorf("verify lookup email: %w", err)
	}

	match, err := pw.Verify(password, user.PasswordHash)
	if err != nil {
		return domain.User{}, false, fmt.Errorf("verify password: %w", err)
	}
	if !match {
		return domain.User{}, false, nil
	}
	return user, true, nil
}

// FindUserByEmail is a plain lookup with no side effects. The bool reports
// whether a user was found.
func (s *AuthService) FindUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, fmt.Errorf("find user by email: %w", err)
	}
	return user, true, nil
}

// ListWorkspaceMembers returns the members of a workspace sorted ascending
// by id, consulting the cache first when one is configured.
func (s *AuthService) ListWorkspaceMembers(ctx context.Context, workspaceID int64) ([]domain.Member, error) {
	ctx, span := s.startSpan(ctx, "AuthService.ListWorkspaceMembers")
	defer span.End()

	if s.cache != nil {
		members, hit, err := s.cache.GetMembers(ctx, workspaceID)
		if err != nil {
			s.log().Warn("member cache read failed", zap.Int64("ws_id", workspaceID), zap.Error(err))
		} else if hit {
			return members, nil
		}
	}

	members, err := s.workspaces.ListMembers(ctx, workspaceID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetMembers(ctx, workspaceID, members); err != nil {
			s.log().Warn("member cache write failed", zap.Int64("ws_id", workspaceID), zap.Error(err))
		}
	}
	return members, nil
}

// resolveWorkspace finds the named workspace or creates it unowned. A
// creation conflict means another signup created it first; the re-read
// then observes the winner's row.
func (s *AuthService) resolveWorkspace(ctx context.Context, name string) (domain.Workspace, bool, error) {
	ws, err := s.workspaces.GetByName(ctx, name)
	if err == nil {
		return ws, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Workspace{}, false, fmt.Errorf("resolve workspace: %w", err)
	}

	ws, err = s.workspaces.Create(ctx, name)
	if err == nil {
		s.audit("workspace.created", "ws_id", ws.ID, "name", name)
		return ws, false, nil
	}
	if !errors.Is(err, repository.ErrWorkspaceExists) {
		return domain.Workspace{}, false, fmt.Errorf("create workspace: %w", err)
	}

	ws, err = s.workspaces.GetByName(ctx, name)
	if err != nil {
		return domain.Workspace{}, false, fmt.Errorf("reload workspace after conflict: %w", err)
	}
	return ws, true, nil
}

func (s *AuthService) invalidateMembers(ctx context.Context, workspaceID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, workspaceID); err != nil {
		s.log().Warn("member cache invalidation failed", zap.Int64("ws_id", workspaceID), zap.Error(err))
	}
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) record(fn func(metrics.Recorder)) {
	if s.metrics != nil {
		fn(s.metrics)
	}
}

func (s *AuthService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
