package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/tenant-auth/internal/auth"
	"github.com/iliyamo/tenant-auth/internal/model"
	"github.com/iliyamo/tenant-auth/internal/repository"
	"github.com/iliyamo/tenant-auth/internal/service"
	"github.com/iliyamo/tenant-auth/internal/tenantctx"
)

const testSecret = "unit-test-secret"

var (
	scopeT1 = tenantctx.Scope{TenantID: 1}
	scopeT2 = tenantctx.Scope{TenantID: 2}
)

func newService(t *testing.T, strict bool) (*service.AuthService, *memStore) {
	t.Helper()
	st := newMemStore()
	svc := service.NewAuthService(st, st, testSecret,
		15*time.Minute, 7*24*time.Hour, bcrypt.MinCost, strict)
	return svc, st
}

func TestRegisterLoginFlow(t *testing.T) {
	svc, _ := newService(t, false)
	ctx := context.Background()

	reg, err := svc.Register(ctx, scopeT1, "alice@x.com", "Str0ng!Pw", "A", "B")
	require.NoError(t, err)
	require.Equal(t, "alice@x.com", reg.User.Email)
	require.Equal(t, model.RoleUser, reg.User.Role)
	require.NotEmpty(t, reg.Access.Token)
	require.NotEmpty(t, reg.Refresh.Token)

	login, err := svc.Login(ctx, scopeT1, "Alice@X.com", "Str0ng!Pw")
	require.NoError(t, err)
	require.Equal(t, reg.User.ID, login.User.ID)
	require.NotEqual(t, reg.Refresh.Token, login.Refresh.Token)
	require.NotEqual(t, reg.Access.Token, login.Access.Token)

	claims, err := auth.ParseAccessToken(testSecret, login.Access.Token)
	require.NoError(t, err)
	require.Equal(t, uint64(1), claims.TenantID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newService(t, false)
	ctx := context.Background()

	_, err := svc.Register(ctx, scopeT1, "dup@x.com", "Str0ng!Pw", "A", "B")
	require.NoError(t, err)
	_, err = svc.Register(ctx, scopeT1, "DUP@x.com", "Str0ng!Pw", "A", "B")
	require.ErrorIs(t, err, service.ErrDuplicateEmail)
}

func TestSameEmailDifferentTenants(t *testing.T) {
	svc, _ := newService(t, false)
	ctx := context.Background()

	r1, err := svc.Register(ctx, scopeT1, "alice@x.com", "Str0ng!Pw", "A", "B")
	require.NoError(t, err)
	r2, err := svc.Register(ctx, scopeT2, "alice@x.com", "Str0ng!Pw", "A", "B")
	require.NoError(t, err)
	require.NotEqual(t, r1.User.ID, r2.User.ID)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService(t, false)
	ctx := context.Background()

	_, err := svc.Register(ctx, scopeT1, "bad-email", "Str0ng!Pw", "A", "B")
	require.Equal(t, service.KindValidation, service.KindOf(err))

	_, err = svc.Register(ctx, scopeT1, "a@x.com", "Str0ng!Pw", "", "B")
	require.Equal(t, service.KindValidation, service.KindOf(err))

	_, err = svc.Register(ctx, scopeT1, "a@x.com", "short", "A", "B")
	require.Equal(t, service.KindValidation, service.KindOf(err))
}

func TestStrictPasswordPolicy(t *testing.T) {
	svc, _ := newService(t, true)
	ctx := context.Background()

	_, err := svc.Register(ctx, scopeT1, "a@x.com", "alllowercase1!", "A", "B")
	require.Equal(t, service.KindValidation, service.KindOf(err))
	_, err = svc.Register(ctx, scopeT1, "a@x.com", "NoDigits!!", "A", "B")
	require.Equal(t, service.KindValidation, service.KindOf(err))
	_, err = svc.Register(ctx, scopeT1, "a@x.com", "Str0ng!Pw", "A", "B")
	require.NoError(t, err)
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc, _ := newService(t, false)
	ctx := context.Background()

	_, err := svc.Register(ctx, scopeT1, "alice@x.com", "Str0ng!Pw", "A", "B")
	require.NoError(t, err)

	_, err = svc.Login(ctx, scopeT1, "nobody@x.com", "Str0ng!Pw")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = svc.Login(ctx, scopeT1, "alice@x.com", "wrong-password")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	// Right credentials under the wrong tenant must fail the same way.
	_, err = svc.Login(ctx, scopeT2, "alice@x.com", "Str0ng!Pw")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestRefreshRotation(t *testing.T) {
	svc, _ := newService(t, false)
	ctx := context.Background()

	reg, err := svc.Register(ctx, scopeT1, "alice@x.com", "Str0ng!Pw", "A", "B")
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, scopeT1, reg.Refresh.Token)
	require.NoError(t, err)
	require.NotEqual(t, reg.Refresh.Token, next.Refresh.Token)

	// The rotated-out token is never accepted again.
	_, err = svc.Refresh(ctx, scopeT1, reg.Refresh.Token)
	require.ErrorIs(t, err, service.ErrTokenRevoked)

	// The replacement works exactly once before its own rotation.
	_, err = svc.Refresh(ctx, scopeT1, next.Refresh.Token)
	require.NoError(t, err)
	_, err = svc.Refresh(ctx, scopeT1, next.Refresh.Token)
	require.ErrorIs(t, err, service.ErrTokenRevoked)
}

func TestRefreshUnknownToken(t *testing.T) {
	svc, _ := newService(t, false)
	_, err := svc.Refresh(context.Background(), scopeT1, "no-such-token")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestRefreshCrossTenantLooksUnknown(t *testing.T) {
	svc, _ := newService(t, false)
	ctx := context.Background()

	reg, err := svc.Register(ctx, scopeT1, "alice@x.com", "Str0ng!Pw", "A", "B")
	require.NoError(t, err)

	// A perfectly valid token presented under another tenant is
	// indistinguishable from an unknown token.
	_, err = svc.Refresh(ctx, scopeT2, reg.Refresh.Token)
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	// And the failed attempt must not have revoked it.
	_, err = svc.Refresh(ctx, scopeT1, reg.Refresh.Token)
	require.NoError(t, err)
}

func TestRefreshExpiredToken(t *testing.T) {
	svc, st := newService(t, false)
	ctx := context.Background()

	reg, err := svc.Register(ctx, scopeT1, "alice@x.com", "Str0ng!Pw", "A", "B")
	require.NoError(t, err)

	st.expireToken(auth.DigestToken(reg.Refresh.Token))
	_, err = svc.Refresh(ctx, scopeT1, reg.Refresh.Token)
	require.ErrorIs(t, err, service.ErrTokenExpired)
}

func TestSessionCap(t *testing.T) {
	svc, st := newService(t, false)
	ctx := context.Background()

	reg, err := svc.Register(ctx, scopeT1, "alice@x.com", "Str0ng!Pw", "A", "B")
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		_, err := svc.Login(ctx, scopeT1, "alice@x.com", "Str0ng!Pw")
		require.NoError(t, err)
	}

	active := st.activeDigests(reg.User.ID)
	require.Len(t, active, 4)
	// The registration token is long gone: only the newest survive.
	require.NotContains(t, active, auth.DigestToken(reg.Refresh.Token))
}

func TestLogoutIdempotent(t *testing.T) {
	svc, st := newService(t, false)
	ctx := context.Background()

	reg, err := svc.Register(ctx, scopeT1, "alice@x.com", "Str0ng!Pw", "A", "B")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, scopeT1, reg.Refresh.Token))
	require.Empty(t, st.activeDigests(reg.User.ID))

	// Second logout with the same token and logout with garbage both
	// succeed; the token stays revoked.
	require.NoError(t, svc.Logout(ctx, scopeT1, reg.Refresh.Token))
	require.NoError(t, svc.Logout(ctx, scopeT1, "never-issued"))
	require.Empty(t, st.activeDigests(reg.User.ID))

	_, err = svc.Refresh(ctx, scopeT1, reg.Refresh.Token)
	require.ErrorIs(t, err, service.ErrTokenRevoked)
}

func TestLogoutIsTenantScoped(t *testing.T) {
	svc, st := newService(t, false)
	ctx := context.Background()

	reg, err := svc.Register(ctx, scopeT1, "alice@x.com", "Str0ng!Pw", "A", "B")
	require.NoError(t, err)

	// Another tenant cannot revoke this token; the call still reports
	// success so token existence cannot be probed.
	require.NoError(t, svc.Logout(ctx, scopeT2, reg.Refresh.Token))
	require.Len(t, st.activeDigests(reg.User.ID), 1)
}

func TestCurrentUser(t *testing.T) {
	svc, _ := newService(t, false)
	ctx := context.Background()

	reg, err := svc.Register(ctx, scopeT1, "alice@x.com", "Str0ng!Pw", "A", "B")
	require.NoError(t, err)

	p, err := svc.CurrentUser(ctx, scopeT1, reg.User.ID)
	require.NoError(t, err)
	require.Equal(t, "alice@x.com", p.Email)

	_, err = svc.CurrentUser(ctx, scopeT2, reg.User.ID)
	require.ErrorIs(t, err, service.ErrTenantMismatch)

	_, err = svc.CurrentUser(ctx, scopeT1, 99999)
	require.ErrorIs(t, err, service.ErrUserNotFound)
}

// ----- in-memory store -----

// memStore implements service.UserStore and service.TokenStore.  Token
// creation order doubles as the newest-first ordering key.
type memStore struct {
	mu      sync.Mutex
	userSeq uint64
	tokSeq  uint64
	users   map[uint64]*model.User
	tokens  map[string]*memToken
}

type memToken struct {
	id        uint64
	userID    uint64
	digest    string
	expiresAt time.Time
	revokedAt *time.Time
	seq       uint64
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[uint64]*model.User),
		tokens: make(map[string]*memToken),
	}
}

func (m *memStore) Create(_ context.Context, scope tenantctx.Scope, u *model.User) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(scope, u)
}

func (m *memStore) createLocked(scope tenantctx.Scope, u *model.User) (uint64, error) {
	for _, existing := range m.users {
		if existing.TenantID == scope.TenantID && existing.Email == u.Email {
			return 0, repository.ErrEmailExists
		}
	}
	m.userSeq++
	cp := *u
	cp.ID = m.userSeq
	cp.TenantID = scope.TenantID
	m.users[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memStore) CreateWithToken(_ context.Context, scope tenantctx.Scope, u *model.User, digest string, exp time.Time) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := m.createLocked(scope, u)
	if err != nil {
		return 0, err
	}
	m.storeLocked(id, digest, exp)
	return id, nil
}

func (m *memStore) GetByEmail(_ context.Context, scope tenantctx.Scope, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.TenantID == scope.TenantID && u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) GetByID(_ context.Context, scope tenantctx.Scope, id uint64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.TenantID != scope.TenantID {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetByIDAcrossTenants(_ context.Context, id uint64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) Store(_ context.Context, userID uint64, digest string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeLocked(userID, digest, exp)
	return nil
}

func (m *memStore) storeLocked(userID uint64, digest string, exp time.Time) {
	m.tokSeq++
	m.tokens[digest] = &memToken{
		id:        m.tokSeq,
		userID:    userID,
		digest:    digest,
		expiresAt: exp,
		seq:       m.tokSeq,
	}
}

func (m *memStore) FindByDigest(_ context.Context, scope tenantctx.Scope, digest string) (*model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[digest]
	if !ok {
		return nil, repository.ErrNotFound
	}
	owner, ok := m.users[t.userID]
	if !ok || owner.TenantID != scope.TenantID {
		return nil, repository.ErrNotFound
	}
	return t.toModel(), nil
}

func (m *memStore) FindByDigestAcrossTenants(_ context.Context, digest string) (*model.RefreshToken, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[digest]
	if !ok {
		return nil, 0, repository.ErrNotFound
	}
	owner, ok := m.users[t.userID]
	if !ok {
		return nil, 0, repository.ErrNotFound
	}
	return t.toModel(), owner.TenantID, nil
}

func (m *memStore) Rotate(_ context.Context, oldDigest string, userID uint64, newDigest string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[oldDigest]; ok && t.revokedAt == nil {
		now := time.Now().UTC()
		t.revokedAt = &now
	}
	m.storeLocked(userID, newDigest, exp)
	return nil
}

func (m *memStore) RevokeByDigest(_ context.Context, digest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[digest]; ok && t.revokedAt == nil {
		now := time.Now().UTC()
		t.revokedAt = &now
	}
	return nil
}

func (m *memStore) ActiveForUser(_ context.Context, userID uint64) ([]model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var active []*memToken
	for _, t := range m.tokens {
		if t.userID == userID && t.revokedAt == nil && t.expiresAt.After(now) {
			active = append(active, t)
		}
	}
	// newest first
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			if active[j].seq > active[i].seq {
				active[i], active[j] = active[j], active[i]
			}
		}
	}
	out := make([]model.RefreshToken, 0, len(active))
	for _, t := range active {
		out = append(out, *t.toModel())
	}
	return out, nil
}

func (m *memStore) RevokeByIDs(_ context.Context, ids []uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, id := range ids {
		for _, t := range m.tokens {
			if t.id == id && t.revokedAt == nil {
				t.revokedAt = &now
			}
		}
	}
	return nil
}

func (m *memStore) expireToken(digest string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[digest]; ok {
		t.expiresAt = time.Now().UTC().Add(-time.Minute)
	}
}

func (m *memStore) activeDigests(userID uint64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var out []string
	for _, t := range m.tokens {
		if t.userID == userID && t.revokedAt == nil && t.expiresAt.After(now) {
			out = append(out, t.digest)
		}
	}
	return out
}

func (t *memToken) toModel() *model.RefreshToken {
	return &model.RefreshToken{
		ID:          t.id,
		UserID:      t.userID,
		TokenDigest: t.digest,
		ExpiresAt:   t.expiresAt,
		RevokedAt:   t.revokedAt,
		CreatedAt:   time.Unix(int64(t.seq), 0),
	}
}
