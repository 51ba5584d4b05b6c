package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/crafthub/craftrelay/storage"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"CraftRelay",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`CraftRelay - MCP Interface

This is a thin client that proxies all requests to the REST API server.

CraftRelay keeps Minecraft bot sessions alive on behalf of browser
viewers. Each bot is tied to a connection record holding the server
address, account, and protocol version. These tools are read-mostly
and meant for inspection and administration; live control (chat,
movement, inventory) happens over the panel WebSocket, not here.

AVAILABLE TOOLS:
- list_connections: List all connection records with live status
- get_connection: Get one connection record
- get_messages: Chat history seen by a bot
- get_logs: Lifecycle log of a bot (connects, errors, reconnects)
- terminate_connection: Force-stop a live bot and delete its record`),
	)

	// Register all tools
	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_connections",
		Description: "List all bot connection records, each annotated with whether a live session exists",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConnections)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_connection",
		Description: "Get one bot connection record",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"connection_id": map[string]interface{}{
					"type":        "string",
					"description": "Connection ID to retrieve",
				},
			},
			Required: []string{"connection_id"},
		},
	}, c.handleGetConnection)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_messages",
		Description: "Get the chat history recorded for a connection, oldest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"connection_id": map[string]interface{}{
					"type":        "string",
					"description": "Connection ID",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of messages to return (newest kept)",
				},
			},
			Required: []string{"connection_id"},
		},
	}, c.handleGetMessages)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_logs",
		Description: "Get the lifecycle log recorded for a connection (connects, disconnects, errors)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"connection_id": map[string]interface{}{
					"type":        "string",
					"description": "Connection ID",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of log lines to return (newest kept)",
				},
			},
			Required: []string{"connection_id"},
		},
	}, c.handleGetLogs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "terminate_connection",
		Description: "Force-stop the live bot for a connection and delete its record. The viewer, if attached, is notified.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"connection_id": map[string]interface{}{
					"type":        "string",
					"description": "Connection ID to terminate",
				},
			},
			Required: []string{"connection_id"},
		},
	}, c.handleTerminateConnection)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// connectionStatus mirrors the admin list response.
type connectionStatus struct {
	storage.Connection
	IsActive bool `json:"isActive"`
}

// Tool handlers

func (c *Client) handleListConnections(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var connections []connectionStatus
	err := c.apiCall("GET", "/api/admin/connections", nil, &connections)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Connections (%d):\n\n", len(connections))
	for _, conn := range connections {
		result += formatConnectionLine(conn)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetConnection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	connectionID, _ := args["connection_id"].(string)

	var conn storage.Connection
	err := c.apiCall("GET", fmt.Sprintf("/api/connections/%s", connectionID), nil, &conn)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := formatConnection(conn)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	connectionID, _ := args["connection_id"].(string)

	path := fmt.Sprintf("/api/connections/%s/messages", connectionID)
	if limit, ok := args["limit"].(float64); ok {
		path += fmt.Sprintf("?limit=%d", int(limit))
	}

	var messages []storage.ChatMessage
	err := c.apiCall("GET", path, nil, &messages)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Messages for %s (%d):\n\n", connectionID, len(messages))
	for _, msg := range messages {
		result += formatMessageLine(msg)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	connectionID, _ := args["connection_id"].(string)

	path := fmt.Sprintf("/api/connections/%s/logs", connectionID)
	if limit, ok := args["limit"].(float64); ok {
		path += fmt.Sprintf("?limit=%d", int(limit))
	}

	var logs []storage.Log
	err := c.apiCall("GET", path, nil, &logs)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Logs for %s (%d):\n\n", connectionID, len(logs))
	for _, entry := range logs {
		result += fmt.Sprintf("[%s] %s: %s\n",
			entry.Timestamp.Format("15:04:05"), strings.ToUpper(entry.Level), entry.Message)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleTerminateConnection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	connectionID, _ := args["connection_id"].(string)

	var response map[string]string
	err := c.apiCall("DELETE", fmt.Sprintf("/api/admin/connections/%s", connectionID), nil, &response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(response["message"]), nil
}

// Formatting helpers

func formatConnectionLine(conn connectionStatus) string {
	status := "idle"
	if conn.IsActive {
		status = "ACTIVE"
	}
	return fmt.Sprintf("- %s: %s on %s (%s, %s) [%s]\n",
		conn.ID, conn.Username, conn.ServerIP, conn.Version, conn.AuthMode, status)
}

func formatConnection(conn storage.Connection) string {
	connected := "no"
	if conn.IsConnected {
		connected = "yes"
	}
	return fmt.Sprintf(`Connection: %s
Username: %s
Server: %s
Version: %s
Auth: %s
Connected: %s
Last ping: %dms
Created: %s`,
		conn.ID, conn.Username, conn.ServerIP, conn.Version, conn.AuthMode,
		connected, conn.LastPing, conn.CreatedAt.Format("2006-01-02 15:04:05"))
}

func formatMessageLine(msg storage.ChatMessage) string {
	prefix := msg.Username
	switch msg.MessageType {
	case storage.MessageSystem:
		prefix = "[system]"
	case storage.MessageJoin, storage.MessageLeave, storage.MessageDeath:
		prefix = "[event]"
	}
	return fmt.Sprintf("[%s] %s: %s\n",
		msg.Timestamp.Format("15:04:05"), prefix, msg.Message)
}
