package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Invocation states.
const (
	InvocationCall   = "call"
	InvocationResult = "result"
)

type User struct {
	ID        string    `json:"id" db:"id"`
	APIToken  string    `json:"-" db:"api_token"`
	PublicKey string    `json:"publicKey" db:"public_key"`
	DegenMode bool      `json:"degenMode" db:"degen_mode"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type Conversation struct {
	ID            string     `json:"id" db:"id"`
	UserID        string     `json:"userId" db:"user_id"`
	Title         string     `json:"title" db:"title"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty" db:"last_message_at"`
	LastReadAt    *time.Time `json:"lastReadAt,omitempty" db:"last_read_at"`
}

// ToolInvocation is a tool call embedded in a message. Result is only set
// in the result state.
type ToolInvocation struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args,omitempty"`
	State      string          `json:"state"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// Attachment is a file the user attached to a message.
type Attachment struct {
	Name        string `json:"name,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	URL         string `json:"url"`
}

type Message struct {
	ID              string          `json:"id" db:"id"`
	ConversationID  string          `json:"conversationId" db:"conversation_id"`
	Role            string          `json:"role" db:"role"`
	Content         string          `json:"content" db:"content"`
	ToolInvocations ToolInvocations `json:"toolInvocations,omitempty" db:"tool_invocations"`
	Attachments     Attachments     `json:"attachments,omitempty" db:"attachments"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
}

// Empty reports whether the message has neither text nor tool invocations.
func (m *Message) Empty() bool {
	return m.Content == "" && len(m.ToolInvocations) == 0
}

type Action struct {
	ID             string     `json:"id" db:"id"`
	UserID         string     `json:"userId" db:"user_id"`
	ConversationID string     `json:"conversationId" db:"conversation_id"`
	Name           string     `json:"name" db:"name"`
	Description    string     `json:"description" db:"description"`
	Frequency      *int64     `json:"frequency" db:"frequency"`
	MaxExecutions  *int64     `json:"maxExecutions" db:"max_executions"`
	TimesExecuted  int64      `json:"timesExecuted" db:"times_executed"`
	LastExecutedAt *time.Time `json:"lastExecutedAt" db:"last_executed_at"`
	LastSuccessAt  *time.Time `json:"lastSuccessAt" db:"last_success_at"`
	LastFailureAt  *time.Time `json:"lastFailureAt" db:"last_failure_at"`
	Paused         bool       `json:"paused" db:"paused"`
	Completed      bool       `json:"completed" db:"completed"`
	Triggered      bool       `json:"triggered" db:"triggered"`
	StartTime      *time.Time `json:"startTime" db:"start_time"`
	LeaseOwner     *string    `json:"-" db:"lease_owner"`
	LeaseExpiresAt *time.Time `json:"-" db:"lease_expires_at"`
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time  `json:"updatedAt" db:"updated_at"`
}

type TokenStat struct {
	ID               string          `json:"id" db:"id"`
	UserID           string          `json:"userId" db:"user_id"`
	MessageIDs       JSONStringArray `json:"messageIds" db:"message_ids"`
	PromptTokens     int             `json:"promptTokens" db:"prompt_tokens"`
	CompletionTokens int             `json:"completionTokens" db:"completion_tokens"`
	TotalTokens      int             `json:"totalTokens" db:"total_tokens"`
	CreatedAt        time.Time       `json:"createdAt" db:"created_at"`
}

// JSONStringArray is a custom type for handling JSON arrays stored as strings in the database
type JSONStringArray []string

func (j *JSONStringArray) Scan(value interface{}) error {
	return scanJSONArray(value, j)
}

func (j JSONStringArray) Value() (driver.Value, error) {
	return jsonArrayValue(j, len(j))
}

// ToolInvocations is stored as a JSON array column.
type ToolInvocations []ToolInvocation

func (t *ToolInvocations) Scan(value interface{}) error {
	return scanJSONArray(value, t)
}

func (t ToolInvocations) Value() (driver.Value, error) {
	return jsonArrayValue(t, len(t))
}

// Find returns the invocation with the given call id, or nil.
func (t ToolInvocations) Find(toolCallID string) *ToolInvocation {
	for i := range t {
		if t[i].ToolCallID == toolCallID {
			return &t[i]
		}
	}
	return nil
}

// Attachments is stored as a JSON array column.
type Attachments []Attachment

func (a *Attachments) Scan(value interface{}) error {
	return scanJSONArray(value, a)
}

func (a Attachments) Value() (driver.Value, error) {
	return jsonArrayValue(a, len(a))
}

func scanJSONArray(value interface{}, dst interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan type %T into %T", value, dst)
	}
	if len(raw) == 0 || string(raw) == "[]" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func jsonArrayValue(v interface{}, n int) (driver.Value, error) {
	if n == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
