// Package storage persists connection records, chat history, bot logs,
// server profiles, and user accounts.
//
// The relay core treats the store as a fire-and-forget collaborator: writes
// that fail are logged by the caller and never block or tear down session
// logic. The REST API reads the same records back for the browser panel.
//
// The bundled implementation is in-memory; all records are lost on process
// restart. Live-session state is owned by the session registry, not by this
// package.
package storage
