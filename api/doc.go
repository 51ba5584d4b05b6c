// Package api provides the HTTP REST surface of the relay.
//
// The api package implements:
//   - Connection record CRUD and history (chat messages, logs)
//   - Server profile presets
//   - Admin endpoints with live-session status
//   - WebSocket upgrade handling
//
// Endpoints:
//
// Connections:
//   - POST /api/connections - Create a connection record
//   - GET /api/connections - List connection records
//   - GET /api/connections/{id} - Get one record
//   - GET /api/connections/{id}/messages - Chat history (optional ?limit=)
//   - GET /api/connections/{id}/logs - Bot log history (optional ?limit=)
//
// Profiles:
//   - GET /api/profiles?userId= - List saved presets
//   - POST /api/profiles - Create a preset
//   - PUT /api/profiles/{id} - Update a preset
//   - DELETE /api/profiles/{id} - Delete a preset
//
// Admin:
//   - GET /api/admin/connections - All records, each with isActive
//   - DELETE /api/admin/connections/{id} - Terminate the live bot and
//     delete the record
//
// Live control does not go through REST; it flows over the WebSocket at
// /ws (see the transport/websocket package).
//
// Errors are returned as JSON with appropriate HTTP status codes:
//
//	{
//	  "error": "error message"
//	}
package api
