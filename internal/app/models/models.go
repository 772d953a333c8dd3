package models

// RoleType defines the caller role carried in the access token
type RoleType string

const (
	RoleStudent RoleType = "student"
	RoleAdmin   RoleType = "admin"
)

// Caller is the authenticated identity a service operation runs as
type Caller struct {
	UserID     string
	Role       RoleType
	RollNumber string
}

// IsAdmin reports whether the caller holds the admin role
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Authenticated reports whether the caller carries an identity at all
func (c Caller) Authenticated() bool {
	return c.UserID != ""
}
