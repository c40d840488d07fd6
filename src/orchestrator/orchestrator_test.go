package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/elee1766/dextra/src/agent"
	"github.com/elee1766/dextra/src/aisdk"
	"github.com/elee1766/dextra/src/aisdk/aisdktest"
	"github.com/elee1766/dextra/src/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noInput struct {
	Q string `json:"q,omitempty"`
}

func testTool(name, desc string) agent.Tool {
	return agent.MustNewGenericTool(name, desc, func(ctx context.Context, caller *agent.Caller, in noInput) (string, error) {
		return "", nil
	})
}

func newTestOrchestrator(t *testing.T, model aisdk.ModelClient) *Orchestrator {
	t.Helper()
	c, err := catalog.New(
		catalog.Group{Name: "coreTools", Description: "Core utility tools"},
		catalog.Group{Name: "webTools", Description: "Web reading"},
	)
	require.NoError(t, err)
	c.MustRegister(
		catalog.Entry{Tool: testTool(catalog.SearchTokenTool, "Search for a token"), Group: "coreTools"},
		catalog.Entry{Tool: testTool(catalog.ConfirmationTool, "Ask the user to confirm"), Group: "coreTools", ClientSide: true},
		catalog.Entry{Tool: testTool(catalog.CreateActionTool, "Schedule an action"), Group: "coreTools", ConfirmationRequired: true},
		catalog.Entry{Tool: testTool("readPage", "Read a web page"), Group: "webTools"},
	)
	o, err := New(Config{Model: model, Catalog: c, Env: catalog.MapEnv{}, Logger: slog.New(slog.DiscardHandler)})
	require.NoError(t, err)
	return o
}

func userSays(text string) []*aisdk.Message {
	return []*aisdk.Message{{Role: aisdk.RoleUser, Content: text}}
}

func TestSelectUnionsBaselineFirst(t *testing.T) {
	model := aisdktest.New(aisdktest.Text(`{"tools":["readPage","askForConfirmation"]}`))
	o := newTestOrchestrator(t, model)

	sel, err := o.SelectToolGroups(context.Background(), userSays("read https://x.io"), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"searchToken", "readPage", "askForConfirmation"}, sel.Names)
	assert.Empty(t, sel.Invalid)
	assert.Equal(t, 15, sel.Usage.TotalTokens)

	req := model.Requests[0]
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, "json_schema", req.ResponseFormat.Type)
	assert.Equal(t, aisdk.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "**createAction** (coreTools): Schedule an action (requires confirmation)")
}

func TestSelectEmptyMeansNoRestriction(t *testing.T) {
	o := newTestOrchestrator(t, aisdktest.New(aisdktest.Text(`{"tools":[]}`)))
	sel, err := o.SelectToolGroups(context.Background(), userSays("hi"), false)
	require.NoError(t, err)
	assert.Nil(t, sel.Names)
}

func TestSelectSuppressesConfirmation(t *testing.T) {
	model := aisdktest.New(aisdktest.Text(`{"tools":["createAction","askForConfirmation"]}`))
	o := newTestOrchestrator(t, model)

	sel, err := o.SelectToolGroups(context.Background(), userSays("yes do it"), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"searchToken", "createAction"}, sel.Names)
	assert.NotContains(t, model.Requests[0].Messages[0].Content, "(requires confirmation)")
}

func TestStripConfirmationAnyForm(t *testing.T) {
	tests := map[string]string{
		"- **swap**: Swap tokens (requires confirmation)\n":   "- **swap**: Swap tokens\n",
		"- **swap**: Swap tokens (Requires Confirmation).\n":  "- **swap**: Swap tokens.\n",
		"- **stake**: Stake SOL, requires confirmation\n":     "- **stake**: Stake SOL\n",
		"- **send**: Send SOL; REQUIRES CONFIRMATION first\n": "- **send**: Send SOL first\n",
		"- **price**: Get a price\n":                          "- **price**: Get a price\n",
	}
	for in, want := range tests {
		assert.Equal(t, want, stripConfirmation(in), in)
	}
}

func TestSelectSurfacesInvalidTool(t *testing.T) {
	o := newTestOrchestrator(t, aisdktest.New(aisdktest.Text(`{"tools":["INVALID_TOOL:bridgeToEthereum"]}`)))
	sel, err := o.SelectToolGroups(context.Background(), userSays("bridge my SOL"), false)
	require.NoError(t, err)
	assert.True(t, sel.HasInvalid())
	assert.Equal(t, []string{"INVALID_TOOL:bridgeToEthereum"}, sel.Invalid)
	assert.Contains(t, sel.Names, "INVALID_TOOL:bridgeToEthereum")
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
		wantErr bool
	}{
		{name: "object", content: `{"tools":["a","b"]}`, want: []string{"a", "b"}},
		{name: "bare array", content: `["a"]`, want: []string{"a"}},
		{name: "fenced", content: "```json\n{\"tools\":[\"a\"]}\n```", want: []string{"a"}},
		{name: "trailing comma", content: `{"tools":["a","b",]}`, want: []string{"a", "b"}},
		{name: "single quotes", content: `{'tools':['a']}`, want: []string{"a"}},
		{name: "empty", content: "", want: nil},
		{name: "prose", content: "I think you need the web tools", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSelection(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlainHistoryDropsToolMessages(t *testing.T) {
	history := []*aisdk.Message{
		{Role: aisdk.RoleUser, Content: "price of BONK"},
		{Role: aisdk.RoleAssistant, ToolCalls: []aisdk.ToolCall{aisdktest.Call("c1", "searchToken", `{}`)}},
		{Role: aisdk.RoleTool, ToolCallID: "c1", Content: `{"price":1}`},
		{Role: aisdk.RoleAssistant, Content: "BONK is $1"},
	}
	got := plainHistory(history)
	require.Len(t, got, 3)
	assert.Equal(t, "[called searchToken]", got[1].Content)
	for _, m := range got {
		assert.Empty(t, m.ToolCalls)
		assert.False(t, strings.HasPrefix(m.Role, "tool"))
	}
}

func TestModelErrorPropagates(t *testing.T) {
	o := newTestOrchestrator(t, aisdktest.New())
	_, err := o.SelectToolGroups(context.Background(), userSays("x"), false)
	assert.ErrorIs(t, err, aisdktest.ErrNoReply)
}
