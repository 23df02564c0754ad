package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
)

// TraineeNotifier pushes notifications to connected trainees.
type TraineeNotifier interface {
	Notify(ctx context.Context, traineeID string, payload map[string]any) error
}

// MCPNotifier implements TraineeNotifier using MCP server notifications.
type MCPNotifier struct {
	mcpServer *server.MCPServer
	clients   *ClientRegistry
}

// NewMCPNotifier creates a notifier that pushes via MCP.
func NewMCPNotifier(mcpServer *server.MCPServer, clients *ClientRegistry) *MCPNotifier {
	return &MCPNotifier{mcpServer: mcpServer, clients: clients}
}

// Notify sends a notification to the trainee's client session.
// Best-effort: returns nil if the trainee is not connected.
func (n *MCPNotifier) Notify(_ context.Context, traineeID string, payload map[string]any) error {
	clientID, ok := n.clients.ClientFor(traineeID)
	if !ok {
		return nil
	}
	err := n.mcpServer.SendNotificationToSpecificClient(clientID, "notifications/message", payload)
	if errors.Is(err, server.ErrSessionNotFound) {
		n.clients.Remove(clientID)
		return nil
	}
	return err
}
