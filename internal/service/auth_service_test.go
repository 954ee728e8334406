package service_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loopchat/chatd/internal/domain"
	"github.com/loopchat/chatd/internal/jwt"
	"github.com/loopchat/chatd/internal/repository"
	"github.com/loopchat/chatd/internal/service"
)

func newTestService(t *testing.T, cache service.MemberCache) (*service.AuthService, *jwt.Verifier, *memoryStore) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	store := newMemoryStore()
	svc := service.NewAuthService(
		&memoryUserRepo{store: store},
		&memoryWorkspaceRepo{store: store},
		jwt.NewIssuer(priv),
		cache,
		nil,
		zap.NewNop(),
	)
	return svc, jwt.NewVerifier(pub), store
}

func TestSignupIssuesVerifiableToken(t *testing.T) {
	svc, verifier, store := newTestService(t, nil)

	output, user, err := svc.Signup(context.Background(), domain.CreateUserInput{
		Fullname:  "A",
		Email:     "a@x.com",
		Workspace: "acme",
		Password:  "pw1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, output.Token)
	require.Positive(t, user.ID)

	principal, err := verifier.Verify(output.Token)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", principal.Email)
	require.Equal(t, user.WorkspaceID, principal.WorkspaceID)

	// First member of a fresh workspace becomes its owner.
	ws := store.workspaceByName(t, "acme")
	require.NotNil(t, ws.OwnerID)
	require.Equal(t, user.ID, *ws.OwnerID)
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	input := domain.CreateUserInput{Fullname: "A", Email: "a@x.com", Workspace: "acme", Password: "pw1"}
	_, first, err := svc.Signup(ctx, input)
	require.NoError(t, err)

	_, _, err = svc.Signup(ctx, input)
	require.True(t, domain.IsEmailExists(err))
	require.EqualError(t, err, "email already exists: a@x.com")

	// The original record is unaffected.
	found, ok, err := svc.FindUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, first.ID, found.ID)
	require.Equal(t, first.Fullname, found.Fullname)
}

func TestSignupRejectsBlankWorkspaceName(t *testing.T) {
	svc, _, store := newTestService(t, nil)

	for _, name := range []string{"", "   ", "\t\n"} {
		_, _, err := svc.Signup(context.Background(), domain.CreateUserInput{
			Fullname:  "A",
			Email:     "a@x.com",
			Workspace: name,
			Password:  "pw1",
		})
		require.ErrorIs(t, err, domain.ErrWorkspaceRequired, "workspace %q", name)
	}
	require.Equal(t, 0, store.workspaceCount())
}

func TestSignupIntoExistingWorkspaceKeepsOwner(t *testing.T) {
	svc, _, store := newTestService(t, nil)
	ctx := context.Background()

	_, owner, err := svc.Signup(ctx, domain.CreateUserInput{Fullname: "A", Email: "a@x.com", Workspace: "acme", Password: "pw1"})
	require.NoError(t, err)
	_, _, err = svc.Signup(ctx, domain.CreateUserInput{Fullname: "B", Email: "b@x.com", Workspace: "acme", Password: "pw2"})
	require.NoError(t, err)

	ws := store.workspaceByName(t, "acme")
	require.NotNil(t, ws.OwnerID)
	require.Equal(t, owner.ID, *ws.OwnerID)
}

func TestSigninFailuresAreIndistinguishable(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	_, _, err := svc.Signup(ctx, domain.CreateUserInput{Fullname: "A", Email: "a@x.com", Workspace: "acme", Password: "pw1"})
	require.NoError(t, err)

	// Unknown email and wrong password collapse into the same outcome at
	// both the credential-verification and the signin levels.
	userA, okA, errA := svc.VerifyCredentials(ctx, "nobody@x.com", "pw1")
	userB, okB, errB := svc.VerifyCredentials(ctx, "a@x.com", "wrong")
	require.NoError(t, errA)
	require.NoError(t, errB)
	require.False(t, okA)
	require.False(t, okB)
	require.Equal(t, userA, userB)

	_, _, err = svc.Signin(ctx, domain.SigninInput{Email: "nobody@x.com", Password: "pw1"})
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, _, err = svc.Signin(ctx, domain.SigninInput{Email: "a@x.com", Password: "wrong"})
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSigninReturnsVerifiableToken(t *testing.T) {
	svc, verifier, _ := newTestService(t, nil)
	ctx := context.Background()

	_, _, err := svc.Signup(ctx, domain.CreateUserInput{Fullname: "A", Email: "a@x.com", Workspace: "acme", Password: "pw1"})
	require.NoError(t, err)

	output, _, err := svc.Signin(ctx, domain.SigninInput{Email: "a@x.com", Password: "pw1"})
	require.NoError(t, err)

	principal, err := verifier.Verify(output.Token)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", principal.Email)
}

func TestConcurrentSignupsAssignExactlyOneOwner(t *testing.T) {
	svc, verifier, store := newTestService(t, nil)
	const n = 8

	var wg sync.WaitGroup
	tokens := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			output, _, err := svc.Signup(context.Background(), domain.CreateUserInput{
				Fullname:  fmt.Sprintf("user-%d", i),
				Email:     fmt.Sprintf("user-%d@x.com", i),
				Workspace: "contested",
				Password:  "pw",
			})
			errs[i] = err
			if err == nil {
				tokens[i] = output.Token
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		principal, err := verifier.Verify(tokens[i])
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("user-%d@x.com", i), principal.Email)
	}

	// Exactly one workspace row, exactly one owner, and the owner is one
	// of its members.
	require.Equal(t, 1, store.workspaceCount())
	ws := store.workspaceByName(t, "contested")
	require.NotNil(t, ws.OwnerID)

	members, err := svc.ListWorkspaceMembers(context.Background(), ws.ID)
	require.NoError(t, err)
	require.Len(t, members, n)
	memberIDs := make([]int64, 0, n)
	for _, m := range members {
		memberIDs = append(memberIDs, m.ID)
	}
	require.Contains(t, memberIDs, *ws.OwnerID)
}

func TestListWorkspaceMembersSortedByID(t *testing.T) {
	svc, _, store := newTestService(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, err := svc.Signup(ctx, domain.CreateUserInput{
			Fullname:  fmt.Sprintf("user-%d", i),
			Email:     fmt.Sprintf("user-%d@x.com", i),
			Workspace: "acme",
			Password:  "pw",
		})
		require.NoError(t, err)
	}

	ws := store.workspaceByName(t, "acme")
	members, err := svc.ListWorkspaceMembers(ctx, ws.ID)
	require.NoError(t, err)
	require.Len(t, members, 5)
	require.True(t, sort.SliceIsSorted(members, func(i, j int) bool {
		return members[i].ID < members[j].ID
	}))
}

func TestListWorkspaceMembersUsesCache(t *testing.T) {
	cache := &memoryMemberCache{entries: make(map[int64][]domain.Member)}
	svc, _, store := newTestService(t, cache)
	ctx := context.Background()

	_, _, err := svc.Signup(ctx, domain.CreateUserInput{Fullname: "A", Email: "a@x.com", Workspace: "acme", Password: "pw"})
	require.NoError(t, err)
	ws := store.workspaceByName(t, "acme")

	// Signup invalidated whatever was cached; the first listing fills the
	// cache, the second hits it.
	first, err := svc.ListWorkspaceMembers(ctx, ws.ID)
	require.NoError(t, err)
	second, err := svc.ListWorkspaceMembers(ctx, ws.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, cache.hits)
	require.GreaterOrEqual(t, cache.invalidations, 1)
}

// memoryStore backs the fake repositories with the same conditional
// semantics the store provides: unique emails and workspace names, and an
// owner transition that succeeds at most once.
type memoryStore struct {
	mu         sync.Mutex
	users      map[int64]domain.User
	emails     map[string]int64
	workspaces map[int64]domain.Workspace
	wsNames    map[string]int64
	nextUserID int64
	nextWSID   int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:      make(map[int64]domain.User),
		emails:     make(map[string]int64),
		workspaces: make(map[int64]domain.Workspace),
		wsNames:    make(map[string]int64),
	}
}

func (s *memoryStore) workspaceByName(t *testing.T, name string) domain.Workspace {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.wsNames[name]
	require.True(t, ok, "workspace %q not found", name)
	return s.workspaces[id]
}

func (s *memoryStore) workspaceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workspaces)
}

type memoryUserRepo struct {
	store *memoryStore
}

func (r *memoryUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return s.users[id], nil
}

func (r *memoryUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (r *memoryUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.emails[user.Email]; exists {
		return domain.User{}, &domain.EmailExistsError{Email: user.Email}
	}
	s.nextUserID++
	user.ID = s.nextUserID
	s.users[user.ID] = user
	s.emails[user.Email] = user.ID
	return user, nil
}

type memoryWorkspaceRepo struct {
	store *memoryStore
}

func (r *memoryWorkspaceRepo) Create(ctx context.Context, name string) (domain.Workspace, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.wsNames[name]; exists {
		return domain.Workspace{}, repository.ErrWorkspaceExists
	}
	s.nextWSID++
	ws := domain.Workspace{ID: s.nextWSID, Name: name}
	s.workspaces[ws.ID] = ws
	s.wsNames[name] = ws.ID
	return ws, nil
}

func (r *memoryWorkspaceRepo) GetByName(ctx context.Context, name string) (domain.Workspace, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.wsNames[name]
	if !ok {
		return domain.Workspace{}, pgx.ErrNoRows
	}
	return s.workspaces[id], nil
}

func (r *memoryWorkspaceRepo) GetByID(ctx context.Context, workspaceID int64) (domain.Workspace, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[workspaceID]
	if !ok {
		return domain.Workspace{}, pgx.ErrNoRows
	}
	return ws, nil
}

func (r *memoryWorkspaceRepo) AssignOwner(ctx context.Context, workspaceID, ownerID int64) (domain.Workspace, bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[workspaceID]
	if !ok {
		return domain.Workspace{}, false, nil
	}
	owner, ok := s.users[ownerID]
	if !ok || owner.WorkspaceID != workspaceID || ws.OwnerID != nil {
		return domain.Workspace{}, false, nil
	}
	ws.OwnerID = &ownerID
	s.workspaces[workspaceID] = ws
	return ws, true, nil
}

func (r *memoryWorkspaceRepo) ListMembers(ctx context.Context, workspaceID int64) ([]domain.Member, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var members []domain.Member
	for _, user := range s.users {
		if user.WorkspaceID == workspaceID {
			members = append(members, domain.Member{ID: user.ID, Fullname: user.Fullname, Email: user.Email})
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

type memoryMemberCache struct {
	mu            sync.Mutex
	entries       map[int64][]domain.Member
	hits          int
	invalidations int
}

func (c *memoryMemberCache) GetMembers(ctx context.Context, workspaceID int64) ([]domain.Member, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	members, ok := c.entries[workspaceID]
	if ok {
		c.hits++
	}
	return members, ok, nil
}

func (c *memoryMemberCache) SetMembers(ctx context.Context, workspaceID int64, members []domain.Member) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[workspaceID] = members
	return nil
}

func (c *memoryMemberCache) Invalidate(ctx context.Context, workspaceID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, workspaceID)
	c.invalidations++
	return nil
}
