package models

// Role is the server-issued role of a user.
type Role string

// Roles. Guest marks the local pseudo-session used when the backend is down.
const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
	RoleGuest   Role = "guest"
)

// User is the client-side record of the signed-in user, persisted under the "user" key.
type User struct {
	Username   string `json:"username"`
	Email      string `json:"email,omitempty"`
	Role       Role   `json:"role,omitempty"`
	FullName   string `json:"fullName,omitempty"`
	Bio        string `json:"bio,omitempty"`
	StudentID  string `json:"studentId,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	IsVerified bool   `json:"is_verified,omitempty"`
}

// IsAdmin reports whether the server granted the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// IsGuest reports whether the record belongs to a guest pseudo-session.
func (u *User) IsGuest() bool {
	return u != nil && u.Role == RoleGuest
}

// DisplayName prefers the full name over the username.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// Profile is the server's student profile as served by /profiles/me/.
type Profile struct {
	ID         int64  `json:"id,omitempty"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	StudentID  string `json:"student_id"`
	Bio        string `json:"bio"`
	IsVerified bool   `json:"is_verified"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	StudentID *string `json:"student_id,omitempty"`
	Bio       *string `json:"bio,omitempty"`
}

// Tokens is the credential pair held by a session.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}
