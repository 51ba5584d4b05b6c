// Package mcp provides the Model Context Protocol surface of the relay.
//
// The mcp package implements:
//   - MCP server for AI agent integration
//   - Tool definitions proxied onto the REST API
//   - Read-mostly inspection plus administrative termination
//
// MCP Tools:
//
// The package exposes the following tools for AI agents:
//   - list_connections: All connection records with live-session status
//   - get_connection: One connection record
//   - get_messages: Chat history recorded for a connection
//   - get_logs: Lifecycle log recorded for a connection
//   - terminate_connection: Force-stop a live bot and delete its record
//
// The client is a thin proxy: every tool call turns into an HTTP request
// against the relay's own REST API, so MCP agents and the admin panel
// always see the same data. Live bot control (chat, movement, inventory)
// is not exposed here; it stays on the viewer WebSocket.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:3000")
//	httpServer := server.NewStreamableHTTPServer(client.GetMCPServer())
//	mux.Handle("/mcp", httpServer)
package mcp
