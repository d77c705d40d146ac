package domain

import (
	"sort"
	"strings"
	"time"
)

type Chat struct {
	ID              string         `json:"id"`
	Participants    []string       `json:"participants"`
	LastMessage     string         `json:"lastMessage"`
	LastMessageTime *time.Time     `json:"lastMessageTime,omitempty"`
	UnreadCount     map[string]int `json:"unreadCount"`
	CreatedAt       time.Time      `json:"createdAt"`
	IsMatchChat     bool           `json:"isMatchChat"`
}

// ChatID returns the canonical chat key for a pair of users: the two ids
// sorted and joined with "_". Other services look chats up by this key, so
// the format must not change.
func ChatID(userA, userB string) string {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

// NewChat builds an empty chat for the pair with canonical participant order.
func NewChat(userA, userB string, isMatch bool, now time.Time) *Chat {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return &Chat{
		ID:           strings.Join(ids, "_"),
		Participants: ids,
		UnreadCount:  map[string]int{ids[0]: 0, ids[1]: 0},
		CreatedAt:    now,
		IsMatchChat:  isMatch,
	}
}

// HasParticipant reports whether userID is one of the chat's two members.
func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Other returns the participant that is not userID.
func (c *Chat) Other(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}
