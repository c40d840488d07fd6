package executor

import "errors"

var (
	ErrModelRequired       = errors.New("model client is required")
	ErrStoreRequired       = errors.New("store is required")
	ErrCatalogRequired     = errors.New("catalog is required")
	ErrMessageRequired     = errors.New("message is required")
	ErrCallerRequired      = errors.New("caller identity is required")
	ErrNoUserMessage       = errors.New("no user message found")
	ErrConversationForeign = errors.New("conversation belongs to another user")
)
