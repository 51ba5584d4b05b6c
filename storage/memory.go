package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryLimit bounds message and log queries when the caller passes
// a non-positive limit.
const DefaultHistoryLimit = 50

// MemStore is an in-memory Store implementation guarded by a single RWMutex.
type MemStore struct {
	mu          sync.RWMutex
	connections map[string]Connection
	messages    map[string]ChatMessage
	logs        map[string]Log
	profiles    map[string]ServerProfile
	users       map[string]User
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		connections: make(map[string]Connection),
		messages:    make(map[string]ChatMessage),
		logs:        make(map[string]Log),
		profiles:    make(map[string]ServerProfile),
		users:       make(map[string]User),
	}
}

// CreateConnection inserts a new connection record with a generated id.
func (s *MemStore) CreateConnection(conn NewConnection) (Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := Connection{
		ID:        uuid.NewString(),
		Username:  conn.Username,
		ServerIP:  conn.ServerIP,
		Version:   conn.Version,
		AuthMode:  conn.AuthMode,
		CreatedAt: time.Now(),
	}
	if record.AuthMode == "" {
		record.AuthMode = "offline"
	}
	s.connections[record.ID] = record
	return record, nil
}

// GetConnection returns a connection record by id.
func (s *MemStore) GetConnection(id string) (Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.connections[id]
	if !ok {
		return Connection{}, ErrNotFound
	}
	return record, nil
}

// UpdateConnection applies a partial update to a connection record.
// Updating a missing record returns ErrNotFound.
func (s *MemStore) UpdateConnection(id string, update ConnectionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.connections[id]
	if !ok {
		return ErrNotFound
	}
	if update.IsConnected != nil {
		record.IsConnected = *update.IsConnected
	}
	if update.LastPing != nil {
		record.LastPing = *update.LastPing
	}
	s.connections[id] = record
	return nil
}

// DeleteConnection removes a connection record and its history.
func (s *MemStore) DeleteConnection(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.connections[id]; !ok {
		return ErrNotFound
	}
	delete(s.connections, id)
	for mid, msg := range s.messages {
		if msg.ConnectionID == id {
			delete(s.messages, mid)
		}
	}
	for lid, entry := range s.logs {
		if entry.ConnectionID == id {
			delete(s.logs, lid)
		}
	}
	return nil
}

// ListConnections returns all connection records, newest first.
func (s *MemStore) ListConnections() []Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Connection, 0, len(s.connections))
	for _, record := range s.connections {
		result = append(result, record)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// AppendChatMessage appends a chat record and returns it with id and
// timestamp filled in.
func (s *MemStore) AppendChatMessage(msg NewChatMessage) (ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := ChatMessage{
		ID:           uuid.NewString(),
		ConnectionID: msg.ConnectionID,
		Username:     msg.Username,
		Message:      msg.Message,
		MessageType:  msg.MessageType,
		IsCommand:    msg.IsCommand,
		Timestamp:    time.Now(),
	}
	if record.MessageType == "" {
		record.MessageType = MessageChat
	}
	s.messages[record.ID] = record
	return record, nil
}

// ChatMessages returns the most recent messages for a connection in
// chronological order.
func (s *MemStore) ChatMessages(connectionID string, limit int) []ChatMessage {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ChatMessage, 0)
	for _, msg := range s.messages {
		if msg.ConnectionID == connectionID {
			result = append(result, msg)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	if len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result
}

// AppendLog appends a bot log line.
func (s *MemStore) AppendLog(connectionID, level, message string) (Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := Log{
		ID:           uuid.NewString(),
		ConnectionID: connectionID,
		Level:        level,
		Message:      message,
		Timestamp:    time.Now(),
	}
	s.logs[record.ID] = record
	return record, nil
}

// Logs returns the most recent log lines for a connection in chronological
// order.
func (s *MemStore) Logs(connectionID string, limit int) []Log {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Log, 0)
	for _, entry := range s.logs {
		if entry.ConnectionID == connectionID {
			result = append(result, entry)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	if len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result
}

// CreateProfile inserts a server profile with a generated id.
func (s *MemStore) CreateProfile(profile ServerProfile) (ServerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile.ID = uuid.NewString()
	profile.CreatedAt = time.Now()
	profile.UpdatedAt = profile.CreatedAt
	if profile.AuthMode == "" {
		profile.AuthMode = "offline"
	}
	if profile.MessageOnLoadDelay == 0 {
		profile.MessageOnLoadDelay = 2000
	}
	s.profiles[profile.ID] = profile
	return profile, nil
}

// UpdateProfile replaces the mutable fields of a profile.
func (s *MemStore) UpdateProfile(id string, profile ServerProfile) (ServerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.profiles[id]
	if !ok {
		return ServerProfile{}, ErrNotFound
	}
	profile.ID = existing.ID
	profile.UserID = existing.UserID
	profile.CreatedAt = existing.CreatedAt
	profile.UpdatedAt = time.Now()
	s.profiles[id] = profile
	return profile, nil
}

// DeleteProfile removes a profile.
func (s *MemStore) DeleteProfile(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[id]; !ok {
		return ErrNotFound
	}
	delete(s.profiles, id)
	return nil
}

// ListProfiles returns the profiles owned by a user, oldest first.
func (s *MemStore) ListProfiles(userID string) []ServerProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ServerProfile, 0)
	for _, profile := range s.profiles {
		if profile.UserID == userID {
			result = append(result, profile)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// CreateUser registers a new user. Usernames are unique.
func (s *MemStore) CreateUser(username, password string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Username == username {
			return User{}, ErrConflict
		}
	}
	user := User{ID: uuid.NewString(), Username: username, Password: password}
	s.users[user.ID] = user
	return user, nil
}

// UserByUsername looks a user up by name.
func (s *MemStore) UserByUsername(username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}
