package tools

// Re-exports of the individual tool packages so callers can build the
// catalog from one import.

import (
	"net/http"
	"time"

	"github.com/elee1766/dextra/src/agent"
	"github.com/elee1766/dextra/src/catalog"
	"github.com/elee1766/dextra/src/copilot/dexscreener"
	tool_askforconfirmation "github.com/elee1766/dextra/src/copilot/tools/tool_askforconfirmation"
	tool_createaction "github.com/elee1766/dextra/src/copilot/tools/tool_createaction"
	tool_gettokenpairs "github.com/elee1766/dextra/src/copilot/tools/tool_gettokenpairs"
	tool_readpage "github.com/elee1766/dextra/src/copilot/tools/tool_readpage"
	tool_searchtoken "github.com/elee1766/dextra/src/copilot/tools/tool_searchtoken"
	tool_sendtelegram "github.com/elee1766/dextra/src/copilot/tools/tool_sendtelegram"
)

const (
	SearchTokenName         = tool_searchtoken.Name
	GetTokenPairsName       = tool_gettokenpairs.Name
	AskForConfirmationName  = tool_askforconfirmation.Name
	CreateActionName        = tool_createaction.Name
	ReadPageName            = tool_readpage.Name
	SendTelegramMessageName = tool_sendtelegram.Name
)

const TelegramTokenVar = tool_sendtelegram.TokenVar

func SearchTokenTool(c *dexscreener.Client) (agent.Tool, error) { return tool_searchtoken.Tool(c) }
func GetTokenPairsTool(c *dexscreener.Client) (agent.Tool, error) {
	return tool_gettokenpairs.Tool(c)
}
func AskForConfirmationTool() (agent.Tool, error) { return tool_askforconfirmation.Tool() }
func CreateActionTool(store tool_createaction.Store, now func() time.Time) (agent.Tool, error) {
	return tool_createaction.Tool(store, now)
}
func ReadPageTool(client *http.Client) (agent.Tool, error) { return tool_readpage.Tool(client) }
func SendTelegramMessageTool(client *http.Client, env catalog.Env, baseURL string) (agent.Tool, error) {
	return tool_sendtelegram.Tool(client, env, baseURL)
}

// DisplayDescription strips the stored no-confirmation suffix from an
// action description.
func DisplayDescription(desc string) string { return tool_createaction.DisplayDescription(desc) }
