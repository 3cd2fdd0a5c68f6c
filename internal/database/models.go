package database

import "time"

// Setting is a single key/value row. The profile store keeps the whole
// serialized configuration record under one key.
type Setting struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
