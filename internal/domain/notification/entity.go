package notification

import "time"

// Type classifies a user-visible notice.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

// Notification is a user-visible notice held by the notification store.
type Notification struct {
	ID         string     `json:"id"`
	Type       Type       `json:"type"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	DurationMs int        `json:"durationMs,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ReadAt     *time.Time `json:"readAt,omitempty"`
}

// Input is what callers provide when adding a notification; the store assigns
// the id and creation time.
type Input struct {
	Type       Type   `json:"type"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	DurationMs int    `json:"durationMs,omitempty"`
}
