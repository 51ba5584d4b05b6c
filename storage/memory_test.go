package storage

import (
	"errors"
	"testing"
	"time"
)

func TestMemStore_Connections(t *testing.T) {
	store := NewMemStore()

	t.Run("create fills defaults", func(t *testing.T) {
		record, err := store.CreateConnection(NewConnection{
			Username: "Steve",
			ServerIP: "mc.example.com:25565",
			Version:  "1.20.1",
		})
		if err != nil {
			t.Fatalf("CreateConnection failed: %v", err)
		}
		if record.ID == "" {
			t.Error("Expected generated id")
		}
		if record.AuthMode != "offline" {
			t.Errorf("Expected default auth mode 'offline', got %q", record.AuthMode)
		}
		if record.IsConnected {
			t.Error("Expected new record to start disconnected")
		}
	})

	t.Run("partial update", func(t *testing.T) {
		record, _ := store.CreateConnection(NewConnection{Username: "Alex", ServerIP: "localhost", Version: "1.20.1"})

		connected := true
		if err := store.UpdateConnection(record.ID, ConnectionUpdate{IsConnected: &connected}); err != nil {
			t.Fatalf("UpdateConnection failed: %v", err)
		}

		ping := 42
		if err := store.UpdateConnection(record.ID, ConnectionUpdate{LastPing: &ping}); err != nil {
			t.Fatalf("UpdateConnection failed: %v", err)
		}

		got, err := store.GetConnection(record.ID)
		if err != nil {
			t.Fatalf("GetConnection failed: %v", err)
		}
		if !got.IsConnected {
			t.Error("Expected IsConnected to survive the second partial update")
		}
		if got.LastPing != 42 {
			t.Errorf("Expected ping 42, got %d", got.LastPing)
		}
	})

	t.Run("update missing record", func(t *testing.T) {
		err := store.UpdateConnection("nope", ConnectionUpdate{})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("delete removes history", func(t *testing.T) {
		record, _ := store.CreateConnection(NewConnection{Username: "Herobrine", ServerIP: "localhost", Version: "1.20.1"})
		store.AppendChatMessage(NewChatMessage{ConnectionID: record.ID, Username: "Herobrine", Message: "hello"})
		store.AppendLog(record.ID, LevelInfo, "connected")

		if err := store.DeleteConnection(record.ID); err != nil {
			t.Fatalf("DeleteConnection failed: %v", err)
		}
		if msgs := store.ChatMessages(record.ID, 0); len(msgs) != 0 {
			t.Errorf("Expected no messages after delete, got %d", len(msgs))
		}
		if logs := store.Logs(record.ID, 0); len(logs) != 0 {
			t.Errorf("Expected no logs after delete, got %d", len(logs))
		}
	})
}

func TestMemStore_ChatMessages(t *testing.T) {
	store := NewMemStore()
	record, _ := store.CreateConnection(NewConnection{Username: "Steve", ServerIP: "localhost", Version: "1.20.1"})

	first, err := store.AppendChatMessage(NewChatMessage{
		ConnectionID: record.ID,
		Username:     "Steve",
		Message:      "first",
	})
	if err != nil {
		t.Fatalf("AppendChatMessage failed: %v", err)
	}
	if first.MessageType != MessageChat {
		t.Errorf("Expected default message type %q, got %q", MessageChat, first.MessageType)
	}
	if first.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}

	store.AppendChatMessage(NewChatMessage{ConnectionID: record.ID, Username: "Server", Message: "second", MessageType: MessageSystem})
	store.AppendChatMessage(NewChatMessage{ConnectionID: "other", Username: "Alex", Message: "elsewhere"})

	msgs := store.ChatMessages(record.ID, 0)
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages for connection, got %d", len(msgs))
	}
	if msgs[0].Message != "first" || msgs[1].Message != "second" {
		t.Errorf("Expected chronological order, got %q then %q", msgs[0].Message, msgs[1].Message)
	}

	t.Run("limit keeps newest", func(t *testing.T) {
		msgs := store.ChatMessages(record.ID, 1)
		if len(msgs) != 1 {
			t.Fatalf("Expected 1 message, got %d", len(msgs))
		}
		if msgs[0].Message != "second" {
			t.Errorf("Expected the newest message, got %q", msgs[0].Message)
		}
	})
}

func TestMemStore_Profiles(t *testing.T) {
	store := NewMemStore()
	user, err := store.CreateUser("steve", "hunter2")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	t.Run("duplicate username", func(t *testing.T) {
		if _, err := store.CreateUser("steve", "other"); !errors.Is(err, ErrConflict) {
			t.Errorf("Expected ErrConflict, got %v", err)
		}
	})

	profile, err := store.CreateProfile(ServerProfile{
		UserID:      user.ID,
		ProfileName: "Survival",
		Username:    "Steve",
		ServerIP:    "mc.example.com",
		Version:     "1.20.1",
	})
	if err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	if profile.MessageOnLoadDelay != 2000 {
		t.Errorf("Expected default delay 2000, got %d", profile.MessageOnLoadDelay)
	}

	t.Run("update keeps identity", func(t *testing.T) {
		time.Sleep(time.Millisecond)
		updated, err := store.UpdateProfile(profile.ID, ServerProfile{
			ProfileName: "Creative",
			Username:    "Steve",
			ServerIP:    "mc.example.com",
			Version:     "1.20.1",
		})
		if err != nil {
			t.Fatalf("UpdateProfile failed: %v", err)
		}
		if updated.ID != profile.ID || updated.UserID != user.ID {
			t.Error("Expected id and owner to be preserved")
		}
		if !updated.UpdatedAt.After(updated.CreatedAt) {
			t.Error("Expected UpdatedAt to advance")
		}
	})

	t.Run("list by owner", func(t *testing.T) {
		profiles := store.ListProfiles(user.ID)
		if len(profiles) != 1 {
			t.Fatalf("Expected 1 profile, got %d", len(profiles))
		}
		if profiles[0].ProfileName != "Creative" {
			t.Errorf("Expected updated name, got %q", profiles[0].ProfileName)
		}
	})
}
