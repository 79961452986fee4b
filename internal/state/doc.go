// Package state provides SQLite and JSON-file backed storage implementations.
package state

import "github.com/user/graphchef/internal/types"

// Compile-time interface compliance checks.
var _ types.ThreadStore = (*Store)(nil)
var _ types.MessageLog = (*Store)(nil)
