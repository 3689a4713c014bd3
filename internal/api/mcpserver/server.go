// Package mcpserver exposes chat turns as Model Context Protocol tools over
// streamable HTTP.
package mcpserver

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/matiasleandrokruk/agentdesk/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/agentdesk/internal/domain/chat"
	"github.com/matiasleandrokruk/agentdesk/internal/version"
)

// ToolSendMessage is the name of the chat turn tool.
const ToolSendMessage = "send_message"

// Sender runs one chat turn. *chat.Service satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, in chat.SendMessageInput) (*chat.SendMessageResult, error)
}

// SendMessageArgs is the send_message tool input.
type SendMessageArgs struct {
	AgentID  string `json:"agentId" jsonschema:"id of the agent that answers"`
	ClientID string `json:"clientId" jsonschema:"id of the end user sending the message"`
	Message  string `json:"message" jsonschema:"the user's message text"`
}

// SendMessageOutput is the send_message tool result.
type SendMessageOutput struct {
	UserMessage      string `json:"userMessage"`
	AssistantMessage string `json:"assistantMessage"`
}

// NewServer returns an MCP server whose tools act on behalf of businessID.
func NewServer(sender Sender, businessID string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: version.Name, Version: version.Version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolSendMessage,
		Description: "Send a message to an agent on behalf of a client and return the agent's reply.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in SendMessageArgs) (*mcp.CallToolResult, SendMessageOutput, error) {
		res, err := sender.SendMessage(ctx, chat.SendMessageInput{
			BusinessID: businessID,
			AgentID:    in.AgentID,
			ClientID:   in.ClientID,
			Message:    in.Message,
		})
		if err != nil {
			return nil, SendMessageOutput{}, err
		}
		return nil, SendMessageOutput{UserMessage: res.UserMessage, AssistantMessage: res.AssistantMessage}, nil
	})

	return server
}

// Handler serves MCP over stateless streamable HTTP. Each request gets a
// server bound to the business injected by the auth middleware.
func Handler(sender Sender) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		businessID, ok := ctxkeys.String(r.Context(), ctxkeys.BusinessID)
		if !ok {
			return nil
		}
		return NewServer(sender, businessID)
	}, &mcp.StreamableHTTPOptions{Stateless: true})
}
