package agent

// Caller is the identity and capability bundle a tool runs under. It is passed
// to every Execute call; tools never look identity up on their own.
type Caller struct {
	UserID         string
	ConversationID string
	// PublicKey is the caller's wallet public key.
	PublicKey string
	DegenMode bool
	// Scheduled is set when the call comes from the action runner rather
	// than a live conversation.
	Scheduled bool
}
