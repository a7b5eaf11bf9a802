package auth

// User is the authenticated admin user snapshot held by the session store.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// TokenPair carries the access/refresh tokens issued at login.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult is the payload of a successful login response.
type LoginResult struct {
	User   User      `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// RefreshResult is the payload of a successful token refresh. RefreshToken is
// empty when the server does not rotate it.
type RefreshResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}
