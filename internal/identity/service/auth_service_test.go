package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"modelplane/authcore/internal/identity/domain"
	"modelplane/authcore/internal/rotation"
	"modelplane/authcore/internal/security"
	sessiondomain "modelplane/authcore/internal/session/domain"
	sessionrepo "modelplane/authcore/internal/session/repository"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User // by ID
}

func (m *memUsers) Create(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

type memIdentities struct {
	identities []*domain.Identity
}

func (m *memIdentities) Create(ctx context.Context, i *domain.Identity) error {
	cp := *i
	m.identities = append(m.identities, &cp)
	return nil
}

func (m *memIdentities) GetByUserAndProvider(ctx context.Context, userID string, provider domain.Provider) (*domain.Identity, error) {
	for _, i := range m.identities {
		if i.UserID == userID && i.Provider == provider {
			cp := *i
			return &cp, nil
		}
	}
	return nil, nil
}

// memSessions implements the parts of the session store the service touches.
type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*sessiondomain.Session
	fail     error
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]*sessiondomain.Session)}
}

func (m *memSessions) Create(ctx context.Context, s *sessiondomain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessions) GetByID(ctx context.Context, id string) (*sessiondomain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) GetByDigest(ctx context.Context, digest string) (*sessiondomain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	for _, s := range m.sessions {
		if s.RefreshDigest == digest {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memSessions) Rotate(ctx context.Context, predecessorID string, successor *sessiondomain.Session) error {
	return errors.New("not used by the service directly")
}

func (m *memSessions) Revoke(ctx context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if s, ok := m.sessions[id]; ok && s.RevokedAt == nil {
		now := time.Now().UTC()
		s.RevokedAt = &now
		s.RevokedReason = reason
	}
	return nil
}

func (m *memSessions) RevokeAllForSubject(ctx context.Context, subjectID, reason, exceptID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return 0, m.fail
	}
	now := time.Now().UTC()
	var n int64
	for _, s := range m.sessions {
		if s.SubjectID == subjectID && s.RevokedAt == nil && s.ID != exceptID {
			s.RevokedAt = &now
			s.RevokedReason = reason
			n++
		}
	}
	return n, nil
}

func (m *memSessions) CountLive(ctx context.Context, subjectID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	n := 0
	for _, s := range m.sessions {
		if s.SubjectID == subjectID && s.Live(now) {
			n++
		}
	}
	return n, nil
}

func (m *memSessions) ListLiveBySubject(ctx context.Context, subjectID string) ([]*sessiondomain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var out []*sessiondomain.Session
	for _, s := range m.sessions {
		if s.SubjectID == subjectID && s.Live(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSessions) Touch(ctx context.Context, id string, at time.Time) error { return nil }

func (m *memSessions) DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (m *memSessions) IsLive(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false, nil
	}
	return s.Live(time.Now().UTC()), nil
}

var _ sessionrepo.Store = (*memSessions)(nil)

type fakeIssuer struct{}

func (fakeIssuer) Issue(sessionID, subject, role string, scopes []string) (string, string, time.Time, error) {
	return "token-for-" + sessionID, "jti-" + sessionID, time.Now().Add(time.Minute), nil
}

type fakeRotator struct {
	result *rotation.Result
	err    error
	got    rotation.Request
}

func (r *fakeRotator) Rotate(ctx context.Context, req rotation.Request) (*rotation.Result, error) {
	r.got = req
	return r.result, r.err
}

func newTestService(t *testing.T, sessions sessionrepo.Store, rotator Rotator) (*AuthService, *memUsers, *memIdentities) {
	t.Helper()
	users := &memUsers{users: make(map[string]*domain.User)}
	identities := &memIdentities{}
	hasher := security.NewPasswordHasher(4)
	digester, err := security.NewSecretDigester([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewSecretDigester: %v", err)
	}
	svc := NewAuthService(users, identities, sessions, hasher, digester, fakeIssuer{}, rotator, nil, time.Hour)
	return svc, users, identities
}

func seedUser(t *testing.T, svc *AuthService, users *memUsers, identities *memIdentities, email, password, role string, status domain.UserStatus) *domain.User {
	t.Helper()
	now := time.Now().UTC()
	u := &domain.User{
		ID: "user-" + email, Email: email, Role: role, Status: status,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	hash, err := svc.hasher.Hash([]byte(password))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	err = identities.Create(context.Background(), &domain.Identity{
		ID: "ident-" + email, UserID: u.ID,
		Provider: domain.ProviderLocal, ProviderID: email,
		PasswordHash: hash, CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed identity: %v", err)
	}
	return u
}

func TestLogin_Success(t *testing.T) {
	sessions := newMemSessions()
	svc, users, identities := newTestService(t, sessions, nil)
	u := seedUser(t, svc, users, identities, "dev@example.com", "s3cret-passw0rd", "developer", domain.UserStatusActive)

	res, err := svc.Login(context.Background(), "Dev@Example.com ", "s3cret-passw0rd",
		ClientContext{Fingerprint: "fp-1", Origin: "203.0.113.0/24"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.UserID != u.ID || res.Role != "developer" {
		t.Errorf("result user=%q role=%q, want %q/developer", res.UserID, res.Role, u.ID)
	}
	if res.AccessToken == "" || res.RefreshSecret == "" {
		t.Error("login must return both credentials")
	}

	sess, _ := sessions.GetByID(context.Background(), res.SessionID)
	if sess == nil {
		t.Fatal("session not persisted")
	}
	if sess.Fingerprint != "fp-1" || sess.Origin != "203.0.113.0/24" {
		t.Errorf("session client attrs: fp=%q origin=%q", sess.Fingerprint, sess.Origin)
	}
	if sess.RefreshDigest == res.RefreshSecret {
		t.Error("session must store a digest, not the plaintext secret")
	}
	if sess.PrevSessionID != "" {
		t.Errorf("fresh login should start a chain root, got predecessor %q", sess.PrevSessionID)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, users, identities := newTestService(t, newMemSessions(), nil)
	seedUser(t, svc, users, identities, "dev@example.com", "s3cret-passw0rd", "developer", domain.UserStatusActive)

	_, err := svc.Login(context.Background(), "dev@example.com", "wrong", ClientContext{})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: want ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc, _, _ := newTestService(t, newMemSessions(), nil)
	_, err := svc.Login(context.Background(), "nobody@example.com", "whatever", ClientContext{})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: want ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_SuspendedAccount(t *testing.T) {
	svc, users, identities := newTestService(t, newMemSessions(), nil)
	seedUser(t, svc, users, identities, "dev@example.com", "s3cret-passw0rd", "developer", domain.UserStatusSuspended)

	_, err := svc.Login(context.Background(), "dev@example.com", "s3cret-passw0rd", ClientContext{})
	if !errors.Is(err, ErrAccountInactive) {
		t.Errorf("suspended account: want ErrAccountInactive, got %v", err)
	}
}

func TestStartSession_RejectsInactiveUser(t *testing.T) {
	svc, _, _ := newTestService(t, newMemSessions(), nil)
	_, err := svc.StartSession(context.Background(),
		&domain.User{ID: "u1", Email: "x@example.com", Role: "viewer", Status: domain.UserStatusSuspended},
		ClientContext{})
	if !errors.Is(err, ErrAccountInactive) {
		t.Errorf("inactive user: want ErrAccountInactive, got %v", err)
	}
}

func TestRefresh_DelegatesToRotator(t *testing.T) {
	sessions := newMemSessions()
	rot := &fakeRotator{result: &rotation.Result{
		Session:       &sessiondomain.Session{ID: "s2", SubjectID: "user-dev@example.com"},
		RefreshSecret: "new-secret",
		AccessToken:   "new-token",
		TokenID:       "jti-2",
		TokenExpires:  time.Now().Add(time.Minute),
	}}
	svc, users, identities := newTestService(t, sessions, rot)
	seedUser(t, svc, users, identities, "dev@example.com", "s3cret-passw0rd", "developer", domain.UserStatusActive)

	res, err := svc.Refresh(context.Background(), "old-secret", ClientContext{Fingerprint: "fp-2"})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rot.got.Secret != "old-secret" || rot.got.Fingerprint != "fp-2" {
		t.Errorf("rotator request = %+v", rot.got)
	}
	if res.SessionID != "s2" || res.RefreshSecret != "new-secret" || res.Role != "developer" {
		t.Errorf("result = %+v", res)
	}
}

func TestRefresh_PropagatesRotationErrors(t *testing.T) {
	rot := &fakeRotator{err: rotation.ErrReuseDetected}
	svc, _, _ := newTestService(t, newMemSessions(), rot)

	_, err := svc.Refresh(context.Background(), "stolen", ClientContext{})
	if !errors.Is(err, rotation.ErrReuseDetected) {
		t.Errorf("want ErrReuseDetected, got %v", err)
	}
}

func TestLogout_RevokesSession(t *testing.T) {
	sessions := newMemSessions()
	svc, users, identities := newTestService(t, sessions, nil)
	seedUser(t, svc, users, identities, "dev@example.com", "s3cret-passw0rd", "developer", domain.UserStatusActive)

	res, err := svc.Login(context.Background(), "dev@example.com", "s3cret-passw0rd", ClientContext{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	svc.Logout(context.Background(), res.RefreshSecret, ClientContext{})
	sess, _ := sessions.GetByID(context.Background(), res.SessionID)
	if sess.RevokedAt == nil || sess.RevokedReason != sessiondomain.ReasonLogout {
		t.Errorf("after logout: at=%v reason=%q", sess.RevokedAt, sess.RevokedReason)
	}

	// Logging out again, or with garbage, must be silent.
	svc.Logout(context.Background(), res.RefreshSecret, ClientContext{})
	svc.Logout(context.Background(), "never-issued", ClientContext{})
}

func TestLogout_SwallowsStoreFailure(t *testing.T) {
	sessions := newMemSessions()
	sessions.fail = errors.New("connection refused")
	svc, _, _ := newTestService(t, sessions, nil)

	// Must not panic and must not surface the failure.
	svc.Logout(context.Background(), "any-secret", ClientContext{})
}

func TestLogoutAll_SparesRequestingSession(t *testing.T) {
	sessions := newMemSessions()
	svc, users, identities := newTestService(t, sessions, nil)
	seedUser(t, svc, users, identities, "dev@example.com", "s3cret-passw0rd", "developer", domain.UserStatusActive)

	var keep string
	for i := 0; i < 3; i++ {
		res, err := svc.Login(context.Background(), "dev@example.com", "s3cret-passw0rd", ClientContext{})
		if err != nil {
			t.Fatalf("Login %d: %v", i, err)
		}
		keep = res.SessionID
	}

	n := svc.LogoutAll(context.Background(), "user-dev@example.com", keep)
	if n != 2 {
		t.Errorf("revoked = %d, want 2", n)
	}
	live, _ := sessions.ListLiveBySubject(context.Background(), "user-dev@example.com")
	if len(live) != 1 || live[0].ID != keep {
		t.Errorf("live sessions after logout-all = %v", live)
	}
}
