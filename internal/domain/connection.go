package domain

import "time"

// Connection is one live socket of a user. Rows are advisory: a stale row
// survives until a delivery to it fails or the reaper removes it.
type Connection struct {
	ID        string    `json:"connectionId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}
