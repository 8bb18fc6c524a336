// Package models defines server-side data models persisted in the database.
package models

import (
	"strconv"
	"time"
)

// Account is a registered end user together with the roles granted to it.
type Account struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	Email     string    `db:"email"`
	Hash      string    `db:"password_hash"`
	CreatedAt time.Time `db:"created_at"`
	Roles     []Role
}

// Identifier prefers the username, then the email, then the numeric id.
func (a *Account) Identifier() string {
	switch {
	case a.Username != "":
		return a.Username
	case a.Email != "":
		return a.Email
	case a.ID != 0:
		return strconv.FormatInt(a.ID, 10)
	}
	return ""
}

func (a *Account) PasswordHash() string { return a.Hash }

// Authorities returns the raw role names as stored.
func (a *Account) Authorities() []string {
	names := make([]string, 0, len(a.Roles))
	for _, r := range a.Roles {
		names = append(names, r.Name)
	}
	return names
}
