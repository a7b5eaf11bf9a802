package jwt

import (
	"time"
)

// Config holds the signing configuration for gateway-issued tokens.
type Config struct {
	Secret     string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Manager bundles a generator and verifier built from one config.
type Manager struct {
	Generator *Generator
	Verifier  *Verifier
	cfg       Config
}

func NewManager(cfg Config) *Manager {
	secret := []byte(cfg.Secret)
	return &Manager{
		Generator: NewGenerator(secret, cfg.Issuer, cfg.Audience),
		Verifier:  NewVerifier(secret, cfg.Issuer, cfg.Audience),
		cfg:       cfg,
	}
}

// IssuePair mints an access/refresh token pair for a user.
func (m *Manager) IssuePair(subject, email, role string) (access, refresh, refreshJTI string, err error) {
	access, _, err = m.Generator.Generate(subject, email, role, PurposeAccess, m.cfg.AccessTTL)
	if err != nil {
		return "", "", "", err
	}
	refresh, refreshJTI, err = m.Generator.Generate(subject, email, role, PurposeRefresh, m.cfg.RefreshTTL)
	if err != nil {
		return "", "", "", err
	}
	return access, refresh, refreshJTI, nil
}

// RefreshTTL exposes the refresh token lifetime, used to bound revocation entries.
func (m *Manager) RefreshTTL() time.Duration {
	return m.cfg.RefreshTTL
}
