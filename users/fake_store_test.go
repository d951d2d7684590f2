package users

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/akun-go/auth"
	"github.com/user/akun-go/background"
)

// memStore is an in-memory Store.
type memStore struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]User
	// failWith, when set, is returned by every call.
	failWith error
}

func newMemStore() *memStore {
	return &memStore{rows: map[uint]User{}}
}

func (m *memStore) List(context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]User, 0, len(m.rows))
	for id := uint(1); id <= m.nextID; id++ {
		if u, ok := m.rows[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, existing := range m.rows {
		if existing.Username == u.Username {
			return ErrDuplicateUsername
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.rows[u.ID] = *u
	return nil
}

func (m *memStore) find(match func(User) bool) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, u := range m.rows {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) FindByID(_ context.Context, id uint) (*User, error) {
	return m.find(func(u User) bool { return u.ID == id })
}

func (m *memStore) FindByUsername(_ context.Context, username string) (*User, error) {
	return m.find(func(u User) bool { return u.Username == username })
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*User, error) {
	return m.find(func(u User) bool { return deref(u.Email) == email })
}

func (m *memStore) FindBySessionToken(_ context.Context, token string) (*User, error) {
	return m.find(func(u User) bool { return u.HasSession(token) })
}

func (m *memStore) update(id uint, fn func(*User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	u, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now()
	m.rows[id] = u
	return nil
}

func (m *memStore) SetSessionToken(_ context.Context, id uint, token string) error {
	return m.update(id, func(u *User) { u.RefreshToken = &token })
}

func (m *memStore) ClearSessionToken(_ context.Context, id uint, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, m.failWith
	}
	u, ok := m.rows[id]
	if !ok || !u.HasSession(token) {
		return false, nil
	}
	u.RefreshToken = nil
	m.rows[id] = u
	return true, nil
}

func (m *memStore) UpdateProfile(_ context.Context, id uint, p ProfileUpdate) error {
	return m.update(id, func(u *User) {
		u.Name, u.Email, u.Phone, u.Alamat = p.Name, p.Email, p.Phone, p.Alamat
		u.Image, u.URL, u.Role = p.Image, p.URL, p.Role
	})
}

func (m *memStore) UpdatePassword(_ context.Context, id uint, hash string) error {
	return m.update(id, func(u *User) { u.Password = hash })
}

func (m *memStore) Delete(_ context.Context, id uint, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if u, ok := m.rows[id]; !ok || !u.HasSession(token) {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memStore) get(t *testing.T, id uint) User {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	require.True(t, ok, "user %d not in store", id)
	return u
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// memImages records saved and removed image names.
type memImages struct {
	mu      sync.Mutex
	saved   map[string][]byte
	removed []string
}

func newMemImages() *memImages {
	return &memImages{saved: map[string][]byte{}}
}

func (m *memImages) Save(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[name] = data
	return nil
}

func (m *memImages) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, name)
	delete(m.saved, name)
	return nil
}

// inlineTasks runs every task before Submit returns.
type inlineTasks struct{}

func (inlineTasks) Submit(task background.Task) {
	_ = task.Run(context.Background())
}

type testEnv struct {
	svc    *AccountService
	store  *memStore
	images *memImages
	tokens *auth.TokenIssuer
	hasher auth.Hasher
	hook   *test.Hook
}

const testPublicURL = "http://localhost:5000"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	tokens, err := auth.NewTokenIssuer("test-secret")
	require.NoError(t, err)

	env := &testEnv{
		store:  newMemStore(),
		images: newMemImages(),
		tokens: tokens,
		hasher: auth.NewBcryptHasher(bcrypt.MinCost),
		hook:   hook,
	}
	env.svc = NewAccountService(env.store, env.hasher, tokens, env.images, inlineTasks{}, testPublicURL+"/", log)
	return env
}

// registerAndLogin creates an account and returns its id and session token.
func (e *testEnv) registerAndLogin(t *testing.T, username, email, password string) (uint, string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.svc.Register(ctx, RegisterRequest{Username: username, Email: email, Password: password}))
	resp, err := e.svc.Login(ctx, LoginRequest{Email: email, Password: password})
	require.NoError(t, err)
	u, err := e.store.FindByEmail(ctx, email)
	require.NoError(t, err)
	return u.ID, resp.AccessToken
}

func (e *testEnv) session(t *testing.T, token string) auth.Session {
	t.Helper()
	claims, err := e.tokens.Verify(token)
	require.NoError(t, err)
	return auth.Session{Claims: claims, Token: token}
}
