package runner

import "errors"

var (
	ErrStoreRequired    = errors.New("runner: store is required")
	ErrExecutorRequired = errors.New("runner: executor is required")

	// Run failures. Each one counts against the action's circuit breaker.
	ErrConversationMissing = errors.New("home conversation not found")
	ErrNoWallet            = errors.New("user has no wallet public key")
	ErrUnsupported         = errors.New("action asks for an unsupported tool")
	ErrNoToolExecuted      = errors.New("no tool was executed")

	// ErrDeferred marks a run the tick deadline cut short. The lease is
	// dropped and the action's bookkeeping is left alone.
	ErrDeferred = errors.New("run deferred to the next tick")
)
