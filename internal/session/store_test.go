package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"admin-realtime-service/internal/domain/auth"
	"admin-realtime-service/internal/kvstore"
	"admin-realtime-service/internal/pkg/jwt"
	"admin-realtime-service/internal/pkg/xerrors"
	"admin-realtime-service/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAPI struct {
	mu sync.Mutex

	loginResult *auth.LoginResult
	loginErr    error

	refreshResult *auth.RefreshResult
	refreshErr    error
	refreshDelay  time.Duration
	refreshCalls  int32

	logoutErr   error
	logoutCalls int32
}

func (f *fakeAPI) Login(_ context.Context, _, _ string) (*auth.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginResult, f.loginErr
}

func (f *fakeAPI) Refresh(_ context.Context, _ string) (*auth.RefreshResult, error) {
	atomic.AddInt32(&f.refreshCalls, 1)
	if f.refreshDelay > 0 {
		time.Sleep(f.refreshDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshResult, f.refreshErr
}

func (f *fakeAPI) Logout(_ context.Context, _ string) error {
	atomic.AddInt32(&f.logoutCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logoutErr
}

func okLogin() *auth.LoginResult {
	return &auth.LoginResult{
		User: auth.User{ID: "admin-1", Email: "admin@example.com", Role: "admin"},
		Tokens: auth.TokenPair{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
		},
	}
}

func newStore(api *fakeAPI) (*session.Store, *kvstore.MemoryStore) {
	storage := kvstore.NewMemoryStore()
	return session.NewStore(api, storage, zap.NewNop()), storage
}

func TestLogin_Success(t *testing.T) {
	api := &fakeAPI{loginResult: okLogin()}
	s, storage := newStore(api)

	require.NoError(t, s.Login(context.Background(), "admin@example.com", "admin123"))

	state := s.Snapshot()
	assert.True(t, state.IsAuthenticated)
	assert.Equal(t, "access-1", state.AccessToken)
	assert.Equal(t, "refresh-1", state.RefreshToken)
	require.NotNil(t, state.User)
	assert.Equal(t, "admin-1", state.User.ID)

	token, err := storage.Get(context.Background(), kvstore.KeyAuthToken)
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)

	userData, err := storage.Get(context.Background(), kvstore.KeyUserData)
	require.NoError(t, err)
	var user auth.User
	require.NoError(t, json.Unmarshal([]byte(userData), &user))
	assert.Equal(t, "admin@example.com", user.Email)
}

func TestLogin_RejectedSurfacesAuthError(t *testing.T) {
	api := &fakeAPI{loginErr: xerrors.ErrAuth}
	s, _ := newStore(api)

	err := s.Login(context.Background(), "admin@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrAuth))
	assert.False(t, s.IsAuthenticated())
}

func TestLogout_IsIdempotentAndSwallowsRemoteFailure(t *testing.T) {
	api := &fakeAPI{loginResult: okLogin(), logoutErr: errors.New("server down")}
	s, storage := newStore(api)

	require.NoError(t, s.Login(context.Background(), "admin@example.com", "admin123"))

	s.Logout(context.Background())
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.AccessToken())

	_, err := storage.Get(context.Background(), kvstore.KeyRefreshToken)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)

	// Second logout is a no-op, not an error.
	s.Logout(context.Background())
	assert.False(t, s.IsAuthenticated())
}

func TestRefreshAuth_ConcurrentCallsCoalesce(t *testing.T) {
	api := &fakeAPI{
		loginResult:   okLogin(),
		refreshResult: &auth.RefreshResult{AccessToken: "access-2"},
		refreshDelay:  100 * time.Millisecond,
	}
	s, _ := newStore(api)
	require.NoError(t, s.Login(context.Background(), "admin@example.com", "admin123"))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.RefreshAuth(context.Background())
		}(i)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Equal(t, int32(1), atomic.LoadInt32(&api.refreshCalls))
	assert.Equal(t, "access-2", s.AccessToken())
}

func TestRefreshAuth_RotatesRefreshTokenWhenProvided(t *testing.T) {
	api := &fakeAPI{
		loginResult:   okLogin(),
		refreshResult: &auth.RefreshResult{AccessToken: "access-2", RefreshToken: "refresh-2"},
	}
	s, _ := newStore(api)
	require.NoError(t, s.Login(context.Background(), "admin@example.com", "admin123"))

	require.NoError(t, s.RefreshAuth(context.Background()))
	state := s.Snapshot()
	assert.Equal(t, "access-2", state.AccessToken)
	assert.Equal(t, "refresh-2", state.RefreshToken)
}

func TestRefreshAuth_KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	api := &fakeAPI{
		loginResult:   okLogin(),
		refreshResult: &auth.RefreshResult{AccessToken: "access-2"},
	}
	s, _ := newStore(api)
	require.NoError(t, s.Login(context.Background(), "admin@example.com", "admin123"))

	require.NoError(t, s.RefreshAuth(context.Background()))
	assert.Equal(t, "refresh-1", s.Snapshot().RefreshToken)
}

func TestRefreshAuth_WithoutTokenForcesLogout(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newStore(api)

	err := s.RefreshAuth(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrAuth))
	assert.False(t, s.IsAuthenticated())
}

func TestRefreshAuth_FailureForcesLogout(t *testing.T) {
	api := &fakeAPI{loginResult: okLogin(), refreshErr: xerrors.ErrAuth}
	s, _ := newStore(api)
	require.NoError(t, s.Login(context.Background(), "admin@example.com", "admin123"))

	err := s.RefreshAuth(context.Background())
	require.Error(t, err)
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.AccessToken())
}

func seedStorage(t *testing.T, storage *kvstore.MemoryStore, accessTTL time.Duration) {
	t.Helper()
	ctx := context.Background()

	gen := jwt.NewGenerator([]byte("test-secret"), "retail-admin", "retail-admin-dashboard")
	token, _, err := gen.Generate("admin-1", "admin@example.com", "admin", jwt.PurposeAccess, accessTTL)
	require.NoError(t, err)

	userData, err := json.Marshal(auth.User{ID: "admin-1", Email: "admin@example.com"})
	require.NoError(t, err)

	require.NoError(t, storage.Set(ctx, kvstore.KeyAuthToken, token))
	require.NoError(t, storage.Set(ctx, kvstore.KeyRefreshToken, "refresh-1"))
	require.NoError(t, storage.Set(ctx, kvstore.KeyUserData, string(userData)))
}

func TestCheckAuth_RestoresPersistedSession(t *testing.T) {
	api := &fakeAPI{}
	s, storage := newStore(api)
	seedStorage(t, storage, time.Hour)

	assert.True(t, s.CheckAuth(context.Background()))
	state := s.Snapshot()
	assert.True(t, state.IsAuthenticated)
	assert.Equal(t, "refresh-1", state.RefreshToken)
	require.NotNil(t, state.User)
	assert.Equal(t, "admin-1", state.User.ID)
}

func TestCheckAuth_ExpiredTokenLogsOut(t *testing.T) {
	api := &fakeAPI{}
	s, storage := newStore(api)
	seedStorage(t, storage, -time.Minute)

	assert.False(t, s.CheckAuth(context.Background()))
	assert.False(t, s.IsAuthenticated())

	_, err := storage.Get(context.Background(), kvstore.KeyAuthToken)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestCheckAuth_EmptyStorageLogsOut(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newStore(api)

	assert.False(t, s.CheckAuth(context.Background()))
	assert.False(t, s.IsAuthenticated())
}

func TestOnChange_FiresOnTransitions(t *testing.T) {
	api := &fakeAPI{loginResult: okLogin()}
	s, _ := newStore(api)

	var mu sync.Mutex
	var states []bool
	s.OnChange(func(state session.State) {
		mu.Lock()
		states = append(states, state.IsAuthenticated)
		mu.Unlock()
	})

	require.NoError(t, s.Login(context.Background(), "admin@example.com", "admin123"))
	s.Logout(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, states, 2)
	assert.True(t, states[0])
	assert.False(t, states[1])
}
