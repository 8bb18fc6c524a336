package models

// Role is a named authority that can be granted to accounts.
type Role struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}
