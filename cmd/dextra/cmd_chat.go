package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/elee1766/dextra/src/agent"
	"github.com/elee1766/dextra/src/aisdk"
	"github.com/elee1766/dextra/src/catalog"
	"github.com/elee1766/dextra/src/confirm"
	"github.com/elee1766/dextra/src/executor"
	"github.com/elee1766/dextra/src/storage"
	"github.com/elee1766/dextra/src/theme"
)

// ChatCmd sends one message as a stored user and streams the reply
type ChatCmd struct {
	Message      []string `arg:"" optional:"" help:"Message text"`
	Token        string   `env:"DEXTRA_TOKEN" help:"API token of the user to chat as"`
	Conversation string   `short:"C" help:"Conversation to continue"`
	Answer       string   `enum:",confirm,deny" default:"" help:"Press the confirm or deny button on the pending confirmation"`
	ShowArgs     bool     `default:"true" negatable:"" help:"Show tool arguments"`
	ShowResults  bool     `default:"true" negatable:"" help:"Show tool results"`
	Highlight    bool     `default:"true" negatable:"" help:"Highlight tool arguments"`
	Style        string   `default:"monokai" help:"Chroma style for tool arguments"`
	Color        bool     `default:"true" negatable:"" help:"Color the output"`
}

// Run executes the chat command
func (c *ChatCmd) Run(ctx context.Context, cli *CLI) error {
	if c.Token == "" {
		return errNoToken
	}
	text := strings.TrimSpace(strings.Join(c.Message, " "))
	if text == "" && c.Answer == "" {
		return fmt.Errorf("%w: a message or --answer is required", errUsage)
	}

	a, err := cli.newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.Store.UserByToken(ctx, c.Token)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	msg := &storage.Message{Role: aisdk.RoleUser, Content: text}
	if c.Answer != "" {
		if c.Conversation == "" {
			return fmt.Errorf("%w: --answer needs --conversation", errUsage)
		}
		history, err := a.Store.Messages(ctx, c.Conversation)
		if err != nil {
			return fmt.Errorf("load conversation: %w", err)
		}
		if msg, err = answerMessage(history, c.Answer); err != nil {
			return err
		}
	}

	palette := theme.Plain
	if c.Color {
		palette = theme.Default
	}
	sink := executor.NewChannelEventSink(64, a.Logger, executor.NewConsoleEventProcessor(os.Stdout, executor.ConsoleProcessorConfig{
		ShowToolArguments: c.ShowArgs,
		ShowToolResults:   c.ShowResults,
		Highlight:         c.Highlight,
		ChromaStyle:       c.Style,
		Theme:             palette,
	}))
	res, err := a.Executor.RunTurn(ctx, executor.TurnRequest{
		ConversationID: c.Conversation,
		Caller:         &agent.Caller{UserID: user.ID, PublicKey: user.PublicKey, DegenMode: user.DegenMode},
		Message:        msg,
	}, sink)
	closeErr := sink.Close()
	if err != nil {
		return err
	}
	if closeErr != nil {
		a.Logger.Warn("console output failed", "error", closeErr)
	}

	fmt.Fprintf(os.Stderr, "\nconversation %s (%d steps, %d tokens)\n", res.ConversationID, res.Steps, res.Usage.TotalTokens)
	if res.Confirmation == confirm.StatePending {
		fmt.Fprintf(os.Stderr, "awaiting confirmation: answer with --conversation %s --answer confirm|deny\n", res.ConversationID)
	}
	return res.Err
}

var errNothingPending = errors.New("no confirmation is pending in this conversation")

// answerMessage builds the assistant message a confirm or deny button press
// sends for the pending confirmation in history.
func answerMessage(history []*storage.Message, answer string) (*storage.Message, error) {
	pending := confirm.FindPending(history)
	inv := pending.Invocation()
	if inv == nil {
		return nil, errNothingPending
	}
	result, err := json.Marshal(confirm.Result{Result: answer})
	if err != nil {
		return nil, err
	}
	return &storage.Message{
		Role: aisdk.RoleAssistant,
		ToolInvocations: storage.ToolInvocations{{
			ToolCallID: inv.ToolCallID,
			ToolName:   catalog.ConfirmationTool,
			Args:       inv.Args,
			State:      storage.InvocationResult,
			Result:     result,
		}},
	}, nil
}
