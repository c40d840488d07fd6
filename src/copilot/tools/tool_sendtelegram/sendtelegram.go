package tool_sendtelegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/elee1766/dextra/src/agent"
	"github.com/elee1766/dextra/src/catalog"
	"github.com/elee1766/dextra/src/copilot/toolsutil"
)

const Name = "sendTelegramMessage"

// TokenVar holds the bot token. The tool is hidden when it is unset.
const TokenVar = "TELEGRAM_BOT_TOKEN"

const DefaultBaseURL = "https://api.telegram.org"

const description = "Send a Telegram message to the user (requires confirmation). Pass the chat id, or the Telegram username of someone who has already sent /start to the bot."

var (
	ErrMissingRecipient = errors.New("a chat id or Telegram username is required")
	ErrBotNotStarted    = errors.New("bot not started yet, send /start to the bot first")
)

type Input struct {
	ChatID   string `json:"chatId,omitempty" description:"Telegram chat id"`
	Username string `json:"username,omitempty" description:"Telegram username, used when no chat id is known"`
	Message  string `json:"message" required:"true" description:"The message text" validate:"max=4096"`
}

type Output struct {
	Success bool   `json:"success"`
	ChatID  string `json:"chatId"`
	// NoFollowUp tells the model not to answer after a delivered message.
	NoFollowUp bool `json:"noFollowUp"`
}

type update struct {
	Message *struct {
		From struct {
			Username string `json:"username"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

type apiResponse[T any] struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
	Result      T      `json:"result"`
}

// Tool returns the sendTelegramMessage tool. The token is read from env on
// every call.
func Tool(client *http.Client, env catalog.Env, baseURL string) (agent.Tool, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return agent.NewGenericTool(Name, description, func(ctx context.Context, caller *agent.Caller, input Input) (Output, error) {
		token, ok := env.LookupEnv(TokenVar)
		if !ok || token == "" {
			return Output{}, fmt.Errorf("%s is not configured", TokenVar)
		}
		bot := baseURL + "/bot" + token

		chatID := strings.TrimSpace(input.ChatID)
		if chatID == "" {
			username := strings.TrimPrefix(strings.TrimSpace(input.Username), "@")
			if username == "" {
				return Output{}, ErrMissingRecipient
			}
			var err error
			chatID, err = findChat(ctx, client, bot, username)
			if err != nil {
				return Output{}, err
			}
		}

		body, err := json.Marshal(map[string]string{"chat_id": chatID, "text": input.Message})
		if err != nil {
			return Output{}, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, bot+"/sendMessage", bytes.NewReader(body))
		if err != nil {
			return Output{}, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		var resp apiResponse[json.RawMessage]
		if err := toolsutil.DoJSON(client, req, &resp); err != nil {
			return Output{}, fmt.Errorf("failed to send Telegram message: %w", err)
		}
		if !resp.OK {
			return Output{}, fmt.Errorf("failed to send Telegram message: %s", resp.Description)
		}
		toolsutil.GetLogger().InfoContext(ctx, "sent telegram message", "chat_id", chatID)
		return Output{Success: true, ChatID: chatID, NoFollowUp: true}, nil
	})
}

func findChat(ctx context.Context, client *http.Client, bot, username string) (string, error) {
	var resp apiResponse[[]update]
	if err := toolsutil.GetJSON(ctx, client, bot+"/getUpdates", &resp); err != nil {
		return "", fmt.Errorf("failed to retrieve bot updates: %w", err)
	}
	for _, u := range resp.Result {
		if u.Message != nil && strings.EqualFold(u.Message.From.Username, username) {
			return strconv.FormatInt(u.Message.Chat.ID, 10), nil
		}
	}
	return "", ErrBotNotStarted
}
