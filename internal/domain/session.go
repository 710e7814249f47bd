package domain

// Session is the token pair returned on successful authentication.
// Nothing is persisted server-side: both tokens are self-contained and
// expire by signature-checked claim alone, so a session cannot be revoked
// before its refresh token runs out.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	User         *Identity `json:"user,omitempty"`
}
