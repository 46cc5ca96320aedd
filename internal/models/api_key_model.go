package models

import "time"

// ApiKey is a long-lived credential for scripts calling the API.
// Only the SHA-256 hash of the key is stored.
type ApiKey struct {
	ID         int64      `db:"id" json:"id"`
	UserID     int64      `db:"user_id" json:"userId"`
	Name       string     `db:"name" json:"name"`
	Prefix     string     `db:"prefix" json:"prefix"`
	KeyHash    string     `db:"key_hash" json:"-"`
	LastUsedAt *time.Time `db:"last_used_at" json:"lastUsedAt"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

// CreatedApiKey carries the plain key, which is shown once.
type CreatedApiKey struct {
	ApiKey
	Key string `json:"key"`
}
