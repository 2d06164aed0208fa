package models

import "time"

// User is the write model, stored in PostgreSQL. Email and username are
// unique across all users; the database constraints are the final arbiter.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// UserView is the read-side projection of a user. It never exposes
// PasswordHash and is what gets cached and returned to callers.
type UserView struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// View derives the non-sensitive projection of the user.
func (u *User) View() *UserView {
	return &UserView{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}
