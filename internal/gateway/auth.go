package gateway

import (
	"sync"
	"time"

	"admin-realtime-service/internal/domain/auth"
	"admin-realtime-service/internal/pkg/jwt"
	"admin-realtime-service/internal/pkg/xerrors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthService issues and refreshes token pairs for the single dev admin user.
// Refresh tokens are rotated on every refresh; revoked JTIs are held in memory
// until they would have expired anyway.
type AuthService struct {
	adminEmail        string
	adminPasswordHash string
	jwtManager        *jwt.Manager
	logger            *zap.Logger

	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewAuthService hashes the dev admin password once at startup.
func NewAuthService(adminEmail, adminPassword string, jwtManager *jwt.Manager, logger *zap.Logger) (*AuthService, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to hash admin password")
	}
	return &AuthService{
		adminEmail:        adminEmail,
		adminPasswordHash: string(hash),
		jwtManager:        jwtManager,
		logger:            logger,
		revoked:           make(map[string]time.Time),
	}, nil
}

// Login checks the credentials and returns a user snapshot with a token pair.
func (s *AuthService) Login(email, password string) (*auth.LoginResult, error) {
	if email != s.adminEmail {
		return nil, xerrors.ErrAuth
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.adminPasswordHash), []byte(password)); err != nil {
		return nil, xerrors.ErrAuth
	}

	user := auth.User{
		ID:    "admin-1",
		Email: s.adminEmail,
		Name:  "Administrator",
		Role:  "admin",
	}

	access, refresh, _, err := s.jwtManager.IssuePair(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to issue tokens")
	}

	s.logger.Info("admin logged in", zap.String("email", email))
	return &auth.LoginResult{
		User:   user,
		Tokens: auth.TokenPair{AccessToken: access, RefreshToken: refresh},
	}, nil
}

// Refresh validates a refresh token, revokes it and issues a fresh pair.
func (s *AuthService) Refresh(refreshToken string) (*auth.RefreshResult, error) {
	claims, err := s.jwtManager.Verifier.Verify(refreshToken)
	if err != nil || !claims.IsRefresh() {
		return nil, xerrors.ErrAuth
	}
	if s.isRevoked(claims.ID) {
		return nil, xerrors.ErrTokenRevoked
	}

	s.revoke(claims.ID)

	access, refresh, _, err := s.jwtManager.IssuePair(claims.Subject, claims.Email, claims.Role)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to issue tokens")
	}

	return &auth.RefreshResult{AccessToken: access, RefreshToken: refresh}, nil
}

// Logout revokes the refresh token. Unknown or already-invalid tokens are not
// an error: logout must always succeed.
func (s *AuthService) Logout(refreshToken string) {
	claims, err := s.jwtManager.Verifier.Verify(refreshToken)
	if err != nil {
		return
	}
	s.revoke(claims.ID)
	s.logger.Info("refresh token revoked", zap.String("jti", claims.ID))
}

// VerifyAccess validates an access token for the websocket handshake.
func (s *AuthService) VerifyAccess(token string) (*jwt.Claims, error) {
	claims, err := s.jwtManager.Verifier.Verify(token)
	if err != nil {
		return nil, xerrors.Wrap(err, "invalid access token")
	}
	if !claims.IsAccess() {
		return nil, xerrors.ErrUnauthorized
	}
	return claims, nil
}

func (s *AuthService) revoke(jti string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = time.Now().Add(s.jwtManager.RefreshTTL())
	for id, exp := range s.revoked {
		if time.Now().After(exp) {
			delete(s.revoked, id)
		}
	}
}

func (s *AuthService) isRevoked(jti string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.revoked[jti]
	return ok && time.Now().Before(exp)
}
