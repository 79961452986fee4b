// internal/types/models.go
package types

import (
	"encoding/json"
	"time"
)

// Role values for persisted messages. Tool turns are never persisted, so
// only the user/assistant pair appears here.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const ThreadStatusActive = "active"

// Thread identifies one persisted conversation. Key is optional and only
// set for threads owned by an external channel (telegram chat, scheduled
// task) that needs to find its thread again by a stable handle.
type Thread struct {
	ID            ThreadID  `json:"id"`
	Key           ThreadKey `json:"key,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// Message is one turn in a thread. Seq breaks ordering ties between
// messages written within the same timestamp instant.
type Message struct {
	ID        MessageID `json:"id"`
	ThreadID  ThreadID  `json:"thread_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}

// InboundQuestion is a question arriving from any adapter (telegram, HTTP,
// scheduler) before it has been bound to a thread.
type InboundQuestion struct {
	Source    string          `json:"source"`
	ThreadKey ThreadKey       `json:"thread_key,omitempty"`
	ThreadID  ThreadID        `json:"thread_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Text      string          `json:"text"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}
