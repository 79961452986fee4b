// internal/types/ids.go
package types

import (
	"strings"

	"github.com/google/uuid"
)

type ThreadKey string
type ThreadID string
type MessageID string
type RunID string

func NewThreadID() ThreadID {
	return ThreadID(uuid.New().String())
}

func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

func NewRunID() RunID {
	return RunID(uuid.New().String())
}

func NewThreadKey(parts ...string) ThreadKey {
	return ThreadKey(strings.Join(parts, ":"))
}
