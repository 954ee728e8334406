package domain

import "time"

// User represents a member of a workspace.
//
// PasswordHash is internal state and must never appear in an outward-facing
// representation; every JSON projection of a user omits it.
type User struct {
	ID           int64     `json:"id"`
	WorkspaceID  int64     `json:"ws_id"`
	Fullname     string    `json:"fullname"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Member is the minimal projection of a user returned by workspace member
// listings.
type Member struct {
	ID       int64  `json:"id"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
}

// CreateUserInput carries signup data. Password is plaintext and transient:
// it is hashed before persistence and never logged.
type CreateUserInput struct {
	Fullname  string `json:"fullname" binding:"required"`
	Email     string `json:"email" binding:"required"`
	Workspace string `json:"workspace" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

// SigninInput carries signin credentials.
type SigninInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}
