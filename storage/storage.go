package storage

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// Log levels used by AppendLog.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Message types recorded for chat history.
const (
	MessageChat    = "chat"
	MessageSystem  = "system"
	MessageJoin    = "join"
	MessageLeave   = "leave"
	MessageDeath   = "death"
	MessageConsole = "console"
)

// Connection is one saved bot connection record. The record is created by
// the CRUD layer before a session starts; the relay only flips IsConnected
// and LastPing.
type Connection struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	ServerIP    string    `json:"serverIp"`
	Version     string    `json:"version"`
	AuthMode    string    `json:"authMode"`
	IsConnected bool      `json:"isConnected"`
	LastPing    int       `json:"lastPing"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewConnection carries the caller-supplied fields of a connection record.
type NewConnection struct {
	Username string `json:"username"`
	ServerIP string `json:"serverIp"`
	Version  string `json:"version"`
	AuthMode string `json:"authMode"`
}

// ConnectionUpdate is a partial update; nil fields are left unchanged.
type ConnectionUpdate struct {
	IsConnected *bool
	LastPing    *int
}

// ChatMessage is one persisted chat or system line.
type ChatMessage struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connectionId"`
	Username     string    `json:"username"`
	Message      string    `json:"message"`
	MessageType  string    `json:"messageType"`
	IsCommand    bool      `json:"isCommand"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewChatMessage carries the fields of a chat record to append.
type NewChatMessage struct {
	ConnectionID string
	Username     string
	Message      string
	MessageType  string
	IsCommand    bool
}

// Log is one persisted bot log line.
type Log struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connectionId"`
	Level        string    `json:"logLevel"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
}

// ServerProfile is a saved connect preset a user can reapply.
type ServerProfile struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"userId"`
	ProfileName        string    `json:"profileName"`
	Username           string    `json:"username"`
	ServerIP           string    `json:"serverIp"`
	Version            string    `json:"version"`
	AuthMode           string    `json:"authMode"`
	MessageOnLoad      string    `json:"messageOnLoad,omitempty"`
	MessageOnLoadDelay int       `json:"messageOnLoadDelay"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// User is a registered panel account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"`
}

// Store is the persistence contract consumed by the relay core and the
// REST API.
type Store interface {
	CreateConnection(conn NewConnection) (Connection, error)
	GetConnection(id string) (Connection, error)
	UpdateConnection(id string, update ConnectionUpdate) error
	DeleteConnection(id string) error
	ListConnections() []Connection

	AppendChatMessage(msg NewChatMessage) (ChatMessage, error)
	ChatMessages(connectionID string, limit int) []ChatMessage

	AppendLog(connectionID, level, message string) (Log, error)
	Logs(connectionID string, limit int) []Log

	CreateProfile(profile ServerProfile) (ServerProfile, error)
	UpdateProfile(id string, profile ServerProfile) (ServerProfile, error)
	DeleteProfile(id string) error
	ListProfiles(userID string) []ServerProfile

	CreateUser(username, password string) (User, error)
	UserByUsername(username string) (User, error)
}
