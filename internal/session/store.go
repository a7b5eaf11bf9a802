package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"admin-realtime-service/internal/domain/auth"
	"admin-realtime-service/internal/kvstore"
	"admin-realtime-service/internal/pkg/jwt"
	"admin-realtime-service/internal/pkg/xerrors"
	"admin-realtime-service/internal/restclient"

	"go.uber.org/zap"
)

// State is an immutable snapshot of the session handed to change listeners.
type State struct {
	User            *auth.User
	AccessToken     string
	RefreshToken    string
	IsAuthenticated bool
}

// Store owns the credentials and authentication status of the admin session.
// Transitions: anonymous -> authenticated on login success, authenticated ->
// anonymous on logout or refresh failure, token rotation on refresh success.
type Store struct {
	mu              sync.Mutex
	user            *auth.User
	accessToken     string
	refreshToken    string
	isAuthenticated bool

	inflight *refreshCall

	api       restclient.AuthAPI
	storage   kvstore.Store
	logger    *zap.Logger
	listeners []func(State)
}

// refreshCall memoizes one in-flight refresh so concurrent triggers share a
// single network call and its outcome.
type refreshCall struct {
	done chan struct{}
	err  error
}

func NewStore(api restclient.AuthAPI, storage kvstore.Store, logger *zap.Logger) *Store {
	return &Store{
		api:     api,
		storage: storage,
		logger:  logger,
	}
}

// Login authenticates against the remote API and stores user and tokens in
// memory and in durable storage. A rejected login surfaces an ErrAuth-wrapped
// error and leaves the session anonymous.
func (s *Store) Login(ctx context.Context, email, password string) error {
	result, err := s.api.Login(ctx, email, password)
	if err != nil {
		s.logger.Warn("login failed", zap.String("email", email), zap.Error(err))
		return xerrors.Wrap(err, "login")
	}

	s.persist(ctx, result.Tokens.AccessToken, result.Tokens.RefreshToken, &result.User)

	s.mu.Lock()
	user := result.User
	s.user = &user
	s.accessToken = result.Tokens.AccessToken
	s.refreshToken = result.Tokens.RefreshToken
	s.isAuthenticated = true
	s.mu.Unlock()

	s.logger.Info("login succeeded",
		zap.String("user_id", result.User.ID),
		zap.String("email", result.User.Email),
	)
	s.notifyListeners()
	return nil
}

// Logout invalidates the refresh token server-side on a best-effort basis and
// then clears all local credentials. It never fails and is idempotent.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	refreshToken := s.refreshToken
	wasAuthenticated := s.isAuthenticated
	s.mu.Unlock()

	if refreshToken != "" {
		if err := s.api.Logout(ctx, refreshToken); err != nil {
			s.logger.Warn("remote logout failed, clearing local session anyway", zap.Error(err))
		}
	}

	s.clearStorage(ctx)

	s.mu.Lock()
	s.user = nil
	s.accessToken = ""
	s.refreshToken = ""
	s.isAuthenticated = false
	s.mu.Unlock()

	if wasAuthenticated {
		s.logger.Info("logged out")
	}
	s.notifyListeners()
}

// RefreshAuth exchanges the refresh token for a new access token. With no
// refresh token present, or on a rejected refresh, the session is logged out.
// Concurrent callers collapse into a single in-flight request and share its
// outcome.
func (s *Store) RefreshAuth(ctx context.Context) error {
	s.mu.Lock()
	if s.inflight != nil {
		call := s.inflight
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	call := &refreshCall{done: make(chan struct{})}
	s.inflight = call
	refreshToken := s.refreshToken
	s.mu.Unlock()

	call.err = s.doRefresh(ctx, refreshToken)

	s.mu.Lock()
	s.inflight = nil
	s.mu.Unlock()
	close(call.done)

	return call.err
}

func (s *Store) doRefresh(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		s.logger.Warn("refresh requested without a refresh token")
		s.Logout(ctx)
		return xerrors.Wrap(xerrors.ErrAuth, "no refresh token")
	}

	result, err := s.api.Refresh(ctx, refreshToken)
	if err != nil {
		s.logger.Warn("token refresh failed", zap.Error(err))
		s.Logout(ctx)
		return xerrors.Wrap(err, "refresh")
	}

	s.mu.Lock()
	s.accessToken = result.AccessToken
	if result.RefreshToken != "" {
		s.refreshToken = result.RefreshToken
	}
	newRefresh := s.refreshToken
	user := s.user
	s.isAuthenticated = true
	s.mu.Unlock()

	s.persist(ctx, result.AccessToken, newRefresh, user)

	s.logger.Debug("access token refreshed")
	s.notifyListeners()
	return nil
}

// CheckAuth rehydrates the session from durable storage at process start. It
// returns true when a valid-looking session (both snapshot pieces present and
// an unexpired access token) was restored, and logs out otherwise.
func (s *Store) CheckAuth(ctx context.Context) bool {
	token, errToken := s.storage.Get(ctx, kvstore.KeyAuthToken)
	userData, errUser := s.storage.Get(ctx, kvstore.KeyUserData)
	refreshToken, _ := s.storage.Get(ctx, kvstore.KeyRefreshToken)

	if errToken != nil || errUser != nil || token == "" || userData == "" {
		s.Logout(ctx)
		return false
	}

	var user auth.User
	if err := json.Unmarshal([]byte(userData), &user); err != nil {
		s.logger.Warn("stored user snapshot is corrupt", zap.Error(err))
		s.Logout(ctx)
		return false
	}

	if exp, err := jwt.PeekExpiry(token); err != nil || (!exp.IsZero() && exp.Before(time.Now())) {
		s.logger.Info("persisted access token expired, discarding session")
		s.Logout(ctx)
		return false
	}

	s.mu.Lock()
	s.user = &user
	s.accessToken = token
	s.refreshToken = refreshToken
	s.isAuthenticated = true
	s.mu.Unlock()

	s.logger.Info("session restored", zap.String("user_id", user.ID))
	s.notifyListeners()
	return true
}

// Snapshot returns the current session state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	var user *auth.User
	if s.user != nil {
		u := *s.user
		user = &u
	}
	return State{
		User:            user,
		AccessToken:     s.accessToken,
		RefreshToken:    s.refreshToken,
		IsAuthenticated: s.isAuthenticated,
	}
}

// IsAuthenticated reports whether the session currently holds credentials.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isAuthenticated
}

// AccessToken returns the current access token, empty when anonymous.
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// OnChange registers a listener invoked with a state snapshot after every
// transition. Listeners run outside the store lock, so they may call back
// into the store.
func (s *Store) OnChange(fn func(State)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) notifyListeners() {
	state := s.Snapshot()

	s.mu.Lock()
	listeners := make([]func(State), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}

func (s *Store) persist(ctx context.Context, accessToken, refreshToken string, user *auth.User) {
	if err := s.storage.Set(ctx, kvstore.KeyAuthToken, accessToken); err != nil {
		s.logger.Warn("failed to persist access token", zap.Error(err))
	}
	if err := s.storage.Set(ctx, kvstore.KeyRefreshToken, refreshToken); err != nil {
		s.logger.Warn("failed to persist refresh token", zap.Error(err))
	}
	if user != nil {
		data, err := json.Marshal(user)
		if err == nil {
			err = s.storage.Set(ctx, kvstore.KeyUserData, string(data))
		}
		if err != nil {
			s.logger.Warn("failed to persist user snapshot", zap.Error(err))
		}
	}
}

func (s *Store) clearStorage(ctx context.Context) {
	for _, key := range []string{kvstore.KeyAuthToken, kvstore.KeyRefreshToken, kvstore.KeyUserData} {
		if err := s.storage.Remove(ctx, key); err != nil {
			s.logger.Warn("failed to clear stored credential", zap.String("key", key), zap.Error(err))
		}
	}
}
