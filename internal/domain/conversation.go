package domain

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a user's conversation history.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// DraftContext correlates media uploads that belong to one in-progress listing.
type DraftContext struct {
	DraftID    string
	MediaPaths []string
}

// Listing is an opaque search result record produced by the agent.
type Listing map[string]any

// CachedSearch holds the most recent search results shown to a user.
type CachedSearch struct {
	Results    []Listing
	CapturedAt time.Time
}

// ArchivedTurn is a transcript record persisted to the audit archive.
type ArchivedTurn struct {
	PK      string `json:"-"`
	SK      string `json:"-"`
	UserKey string `json:"user_key"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Created string `json:"created"`
	TTL     int64  `json:"-"`
}

// ArchiveMeta summarizes a user's archived transcript.
type ArchiveMeta struct {
	PK           string `json:"-"`
	SK           string `json:"-"`
	UserKey      string `json:"user_key"`
	LastActivity string `json:"last_activity"`
	Exchanges    int    `json:"exchanges"`
	TTL          int64  `json:"-"`
}
