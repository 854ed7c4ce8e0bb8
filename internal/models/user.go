
package models

import "time"

// User represents a row of the users table
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Nama         string    `json:"nama"`
	PasswordHash string    `json:"-"` // Never serialized; holds the salted hash only
	CreatedAt    time.Time `json:"created_at"`
}

// UserPatch is a partial update. Nil means "not supplied".
type UserPatch struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Nama     *string `json:"nama"`
}
