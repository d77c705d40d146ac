package domain

import "time"

// Like is a directed edge from one user to another. A pair of opposite
// edges is a match.
type Like struct {
	FromUserID string    `json:"fromUserId"`
	ToUserID   string    `json:"toUserId"`
	CreatedAt  time.Time `json:"createdAt"`
}
