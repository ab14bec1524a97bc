// Package models defines the core data structures for stored user credentials.
package models

import "time"

// CreatedAtLayout is the ISO-8601 layout used for User.CreatedAt.
const CreatedAtLayout = "2006-01-02T15:04:05.000Z07:00"

// User is a stored credential record. Records are created by registration
// and never modified afterwards.
type User struct {
	// ID is the unique identifier for the user.
	ID string `json:"id"`
	// Username is the login name chosen by the user. Matching is case-sensitive.
	Username string `json:"username"`
	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string `json:"passwordHash"`
	// CreatedAt is the creation time formatted with CreatedAtLayout.
	CreatedAt string `json:"createdAt"`
}

// Info returns the public view of the record.
func (u User) Info() UserInfo {
	return UserInfo{ID: u.ID, Username: u.Username}
}

// UserInfo is what register and login return to callers.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// FormatCreatedAt renders t in UTC with millisecond precision.
func FormatCreatedAt(t time.Time) string {
	return t.UTC().Format(CreatedAtLayout)
}
