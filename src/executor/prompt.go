package executor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elee1766/dextra/src/agent"
	"github.com/elee1766/dextra/src/catalog"
	"github.com/elee1766/dextra/src/storage"
)

// PromptContext is the per-turn information appended to the instructions.
type PromptContext struct {
	Attachments    []storage.Attachment
	Caller         *agent.Caller
	ConversationID string
	Now            time.Time
	// Unsupported are capabilities the user asked for that no tool offers.
	Unsupported []string
}

type attachmentRef struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// BuildSystemPrompt joins the base instructions with the attachment
// history, the caller identity and the current time.
func BuildSystemPrompt(base string, pc PromptContext) string {
	sections := []string{strings.TrimSpace(base)}

	if pc.Caller == nil || !pc.Caller.Scheduled {
		refs := make([]attachmentRef, 0, len(pc.Attachments))
		for _, a := range pc.Attachments {
			refs = append(refs, attachmentRef{Type: a.ContentType, Data: a.URL})
		}
		raw, _ := json.Marshal(refs)
		sections = append(sections, "History of attachments: "+string(raw))
	}

	if c := pc.Caller; c != nil {
		if c.PublicKey != "" {
			sections = append(sections, "User Solana wallet public key: "+c.PublicKey)
		}
		sections = append(sections, "User ID: "+c.UserID)
		if pc.ConversationID != "" {
			sections = append(sections, "Conversation ID: "+pc.ConversationID)
		}
		sections = append(sections, fmt.Sprintf("Degen Mode: %t", c.DegenMode))
		if c.Scheduled {
			sections = append(sections, "This is a scheduled action run. No user is present to answer questions or confirm anything; carry out the request with the tools provided.")
		}
	}

	if len(pc.Unsupported) > 0 {
		names := make([]string, len(pc.Unsupported))
		for i, n := range pc.Unsupported {
			names[i] = strings.TrimPrefix(n, catalog.InvalidToolPrefix)
		}
		sections = append(sections, "Unsupported requests: "+strings.Join(names, ", ")+
			". No tool is available for these; tell the user the requested action is not supported.")
	}

	now := pc.Now
	if now.IsZero() {
		now = time.Now()
	}
	sections = append(sections, fmt.Sprintf("Realtime knowledge:\n- { approximateCurrentTime: %s }", now.UTC().Format(time.RFC3339)))

	out := sections[:0]
	for _, s := range sections {
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n\n")
}
