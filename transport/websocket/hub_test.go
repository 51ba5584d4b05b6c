package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/crafthub/craftrelay/wire"
)

// call records one relay invocation.
type call struct {
	op   string
	id   string
	args []any
}

type fakeRelay struct {
	mu       sync.Mutex
	calls    []call
	detached []wire.Sender
}

func (f *fakeRelay) record(op, id string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: op, id: id, args: args})
}

func (f *fakeRelay) ConnectBot(ctx context.Context, ch wire.Sender, req wire.ConnectBotData) {
	f.record("connect", req.ConnectionID, req.ServerIP)
}
func (f *fakeRelay) DisconnectBot(id string)      { f.record("disconnect", id) }
func (f *fakeRelay) SendChat(id, message string)  { f.record("chat", id, message) }
func (f *fakeRelay) SendCommand(id, cmd string)   { f.record("command", id, cmd) }
func (f *fakeRelay) GetInventory(id string)       { f.record("inventory", id) }
func (f *fakeRelay) DropItem(id string, slot int) { f.record("drop", id, slot) }
func (f *fakeRelay) EnableAlwaysOnline(id string) { f.record("enable_ao", id) }
func (f *fakeRelay) DisableAlwaysOnline(id string) {
	f.record("disable_ao", id)
}
func (f *fakeRelay) MoveBot(id, direction, action string) {
	f.record("move", id, direction, action)
}
func (f *fakeRelay) DetachChannel(ch wire.Sender) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detached = append(f.detached, ch)
}

func (f *fakeRelay) waitCalls(t *testing.T, n int) []call {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		if len(f.calls) >= n {
			got := append([]call(nil), f.calls...)
			f.mu.Unlock()
			return got
		}
		f.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d relay calls", n)
	return nil
}

func (f *fakeRelay) detachCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.detached)
}

func startHub(t *testing.T) (*fakeRelay, *websocket.Conn) {
	t.Helper()
	relay := &fakeRelay{}
	hub := NewHub(relay, zerolog.Nop())
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r)
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return relay, conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	frame := map[string]any{"type": msgType, "data": data}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("Failed to send %s: %v", msgType, err)
	}
}

func readReply(t *testing.T, conn *websocket.Conn) wire.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read reply: %v", err)
	}
	var msg wire.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("Failed to decode reply: %v", err)
	}
	return msg
}

func TestDispatchRouting(t *testing.T) {
	relay, conn := startHub(t)

	send(t, conn, wire.TypeConnectBot, wire.ConnectBotData{ConnectionID: "c1", ServerIP: "mc.example.com", Username: "Bot"})
	send(t, conn, wire.TypeSendChat, wire.SendChatData{ConnectionID: "c1", Message: "hello"})
	send(t, conn, wire.TypeSendCommand, wire.SendCommandData{ConnectionID: "c1", Command: "/tp 0 0 0"})
	send(t, conn, wire.TypeMoveBot, wire.MoveBotData{ConnectionID: "c1", Direction: "forward", Action: "start"})
	send(t, conn, wire.TypeGetInventory, wire.GetInventoryData{ConnectionID: "c1"})
	send(t, conn, wire.TypeDropItem, wire.DropItemData{ConnectionID: "c1", Slot: 4})
	send(t, conn, wire.TypeEnableAlwaysOnline, wire.AlwaysOnlineData{ConnectionID: "c1"})
	send(t, conn, wire.TypeDisableAlwaysOnline, wire.AlwaysOnlineData{ConnectionID: "c1"})
	send(t, conn, wire.TypeDisconnectBot, wire.DisconnectBotData{ConnectionID: "c1"})

	calls := relay.waitCalls(t, 9)
	byOp := make(map[string]call)
	for _, c := range calls {
		byOp[c.op] = c
	}
	for _, op := range []string{"connect", "chat", "command", "move", "inventory", "drop", "enable_ao", "disable_ao", "disconnect"} {
		c, ok := byOp[op]
		if !ok {
			t.Errorf("Expected relay call %q", op)
			continue
		}
		if c.id != "c1" {
			t.Errorf("Expected %q routed to c1, got %q", op, c.id)
		}
	}
	if got := byOp["move"].args; len(got) != 2 || got[0] != "forward" || got[1] != "start" {
		t.Errorf("Unexpected move args: %v", got)
	}
	if got := byOp["drop"].args; len(got) != 1 || got[0] != 4 {
		t.Errorf("Unexpected drop args: %v", got)
	}
}

func TestDispatchErrors(t *testing.T) {
	t.Run("unknown type gets an error reply", func(t *testing.T) {
		relay, conn := startHub(t)

		send(t, conn, "fly_bot", map[string]any{"connectionId": "c1"})

		reply := readReply(t, conn)
		if reply.Type != wire.TypeError {
			t.Fatalf("Expected error reply, got %q", reply.Type)
		}
		relay.mu.Lock()
		defer relay.mu.Unlock()
		if len(relay.calls) != 0 {
			t.Errorf("Expected no relay calls for unknown type, got %v", relay.calls)
		}
	})

	t.Run("malformed json gets an error reply", func(t *testing.T) {
		_, conn := startHub(t)

		if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
			t.Fatalf("Failed to send: %v", err)
		}
		reply := readReply(t, conn)
		if reply.Type != wire.TypeError {
			t.Fatalf("Expected error reply, got %q", reply.Type)
		}
	})

	t.Run("mismatched payload gets an error reply", func(t *testing.T) {
		_, conn := startHub(t)

		send(t, conn, wire.TypeDropItem, map[string]any{"connectionId": "c1", "slot": "not-a-number"})

		reply := readReply(t, conn)
		if reply.Type != wire.TypeError {
			t.Fatalf("Expected error reply, got %q", reply.Type)
		}
	})
}

func TestCloseDetachesSessions(t *testing.T) {
	relay, conn := startHub(t)

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for relay.detachCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for DetachChannel")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if relay.detachCount() != 1 {
		t.Errorf("Expected one detach, got %d", relay.detachCount())
	}
}

func TestClientSendAfterClose(t *testing.T) {
	client := &Client{
		send: make(chan []byte, 1),
		done: make(chan struct{}),
	}
	if err := client.Send(wire.PingUpdate(5)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	client.close()
	if err := client.Send(wire.PingUpdate(5)); err != ErrClientGone {
		t.Errorf("Expected ErrClientGone after close, got %v", err)
	}
}
