package model

// User roles returned by the API
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// User is the profile of an authenticated account
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// TokenPair holds the bearer credentials issued by the auth endpoints.
// The two tokens are always replaced together.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Complete returns true if both tokens are present
func (p TokenPair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// AuthPayload is the normalized result of login, register and refresh
type AuthPayload struct {
	User   *User     `json:"user,omitempty"`
	Tokens TokenPair `json:"tokens"`
}
