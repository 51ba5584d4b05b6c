package adapter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/crafthub/craftrelay/bot/protocol"
	"github.com/crafthub/craftrelay/bot/protocol/protocoltest"
)

// collector gathers the adapter's event stream for assertions.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func (c *collector) waitLen(t *testing.T, n int) []Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := c.all(); len(got) >= n {
			return got
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d events, have %d", n, len(c.all()))
	return nil
}

func dialFake(t *testing.T, fake *protocoltest.Fake, cfg Config) *Adapter {
	t.Helper()
	if cfg.ConnectionID == "" {
		cfg.ConnectionID = "conn-1"
	}
	if cfg.TelemetryInterval == 0 {
		cfg.TelemetryInterval = time.Hour
	}
	a, err := Dial(context.Background(), fake.Dialer(), protocol.Options{Host: "h", Port: 25565}, cfg)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(a.Terminate)
	return a
}

func TestDial_Failure(t *testing.T) {
	dialErr := errors.New("connection refused")
	_, err := Dial(context.Background(), protocoltest.FailingDialer(dialErr), protocol.Options{}, Config{Logger: zerolog.Nop()})
	if !errors.Is(err, dialErr) {
		t.Fatalf("Expected dial error to surface, got %v", err)
	}
}

func TestSendChatOrCommand(t *testing.T) {
	t.Run("forwards chat verbatim", func(t *testing.T) {
		fake := protocoltest.NewFake()
		a := dialFake(t, fake, Config{Logger: zerolog.Nop()})

		a.SendChatOrCommand("hello world")
		a.SendChatOrCommand("/tp 0 64 0")

		if len(fake.ChatLines) != 2 || fake.ChatLines[1] != "/tp 0 64 0" {
			t.Errorf("Unexpected chat lines: %v", fake.ChatLines)
		}
	})

	t.Run("dropped silently when not connected", func(t *testing.T) {
		fake := protocoltest.NewFake()
		col := &collector{}
		a := dialFake(t, fake, Config{Handler: col.handle, Logger: zerolog.Nop()})

		fake.Quit()
		a.SendChatOrCommand("too late")

		if len(fake.ChatLines) != 0 {
			t.Errorf("Expected no chat lines, got %v", fake.ChatLines)
		}
		if got := col.all(); len(got) != 0 {
			t.Errorf("Expected no events for a silent drop, got %v", got)
		}
	})
}

func TestIsCommand(t *testing.T) {
	if !IsCommand("/gamemode creative") {
		t.Error("Expected slash line to classify as command")
	}
	if IsCommand("hello /all") {
		t.Error("Expected plain chat to classify as chat")
	}
}

func TestSetMovement(t *testing.T) {
	t.Run("round trip leaves control released", func(t *testing.T) {
		fake := protocoltest.NewFake()
		a := dialFake(t, fake, Config{Logger: zerolog.Nop()})

		if err := a.SetMovement("forward", true); err != nil {
			t.Fatalf("SetMovement start failed: %v", err)
		}
		if !fake.ControlState(protocol.ControlForward) {
			t.Fatal("Expected forward to be held after start")
		}
		if err := a.SetMovement("forward", false); err != nil {
			t.Fatalf("SetMovement stop failed: %v", err)
		}
		if fake.ControlState(protocol.ControlForward) {
			t.Error("Expected forward to be released after stop")
		}
	})

	t.Run("jump is a one-shot pulse", func(t *testing.T) {
		fake := protocoltest.NewFake()
		a := dialFake(t, fake, Config{Logger: zerolog.Nop(), JumpPulse: 10 * time.Millisecond})

		if err := a.SetMovement("jump", true); err != nil {
			t.Fatalf("SetMovement jump failed: %v", err)
		}
		if !fake.ControlState(protocol.ControlJump) {
			t.Fatal("Expected jump to be held right after the press")
		}

		deadline := time.Now().Add(time.Second)
		for fake.ControlState(protocol.ControlJump) {
			if time.Now().After(deadline) {
				t.Fatal("Timed out waiting for jump release")
			}
			time.Sleep(2 * time.Millisecond)
		}
	})

	t.Run("crouch aliases sneak", func(t *testing.T) {
		fake := protocoltest.NewFake()
		a := dialFake(t, fake, Config{Logger: zerolog.Nop()})

		if err := a.SetMovement("crouch", true); err != nil {
			t.Fatalf("SetMovement crouch failed: %v", err)
		}
		if !fake.ControlState(protocol.ControlSneak) {
			t.Error("Expected crouch to map to the sneak control")
		}
	})

	t.Run("unknown direction errors", func(t *testing.T) {
		fake := protocoltest.NewFake()
		a := dialFake(t, fake, Config{Logger: zerolog.Nop()})

		if err := a.SetMovement("strafe", true); err == nil {
			t.Error("Expected error for unknown direction")
		}
	})
}

func TestDropItem(t *testing.T) {
	t.Run("empty slot issues no protocol command", func(t *testing.T) {
		fake := protocoltest.NewFake()
		a := dialFake(t, fake, Config{Logger: zerolog.Nop()})

		_, err := a.DropItem(5)
		if !errors.Is(err, ErrEmptySlot) {
			t.Fatalf("Expected ErrEmptySlot, got %v", err)
		}
		if len(fake.Tossed) != 0 {
			t.Errorf("Expected no toss command, got %v", fake.Tossed)
		}
	})

	t.Run("occupied slot tosses and reports contents", func(t *testing.T) {
		fake := protocoltest.NewFake()
		fake.Slots = []protocol.Slot{{Slot: 3, ItemID: "minecraft:dirt", DisplayName: "Dirt", Count: 42}}
		a := dialFake(t, fake, Config{Logger: zerolog.Nop()})

		dropped, err := a.DropItem(3)
		if err != nil {
			t.Fatalf("DropItem failed: %v", err)
		}
		if dropped.DisplayName != "Dirt" || dropped.Count != 42 {
			t.Errorf("Unexpected dropped slot: %+v", dropped)
		}
		if len(fake.Tossed) != 1 || fake.Tossed[0] != 3 {
			t.Errorf("Expected toss of slot 3, got %v", fake.Tossed)
		}
	})
}

func TestTerminate_Idempotent(t *testing.T) {
	fake := protocoltest.NewFake()
	a := dialFake(t, fake, Config{Logger: zerolog.Nop()})

	a.Terminate()
	a.Terminate()

	if fake.QuitCalls != 1 {
		t.Errorf("Expected exactly one quit, got %d", fake.QuitCalls)
	}
	if !a.Terminated() {
		t.Error("Expected adapter to report terminated")
	}
}

func TestEventStream(t *testing.T) {
	t.Run("events arrive in emission order", func(t *testing.T) {
		fake := protocoltest.NewFake()
		col := &collector{}
		dialFake(t, fake, Config{Handler: col.handle, Logger: zerolog.Nop()})

		fake.EmitConnected()
		fake.EmitChat("Alex", "hi")
		fake.EmitDeath()

		got := col.waitLen(t, 3)
		if _, ok := got[0].(ConnectedEvent); !ok {
			t.Errorf("Expected ConnectedEvent first, got %T", got[0])
		}
		chat, ok := got[1].(ChatEvent)
		if !ok || chat.Username != "Alex" {
			t.Errorf("Expected ChatEvent from Alex, got %#v", got[1])
		}
		if _, ok := got[2].(DeathEvent); !ok {
			t.Errorf("Expected DeathEvent last, got %T", got[2])
		}
	})

	t.Run("kick marks the disconnect", func(t *testing.T) {
		fake := protocoltest.NewFake()
		col := &collector{}
		dialFake(t, fake, Config{Handler: col.handle, Logger: zerolog.Nop()})

		fake.EmitKicked("banned")
		fake.EmitEnd("")

		got := col.waitLen(t, 1)
		disc, ok := got[0].(DisconnectedEvent)
		if !ok {
			t.Fatalf("Expected DisconnectedEvent, got %T", got[0])
		}
		if !disc.Kicked || disc.Reason != "banned" {
			t.Errorf("Expected kicked disconnect with kick reason, got %+v", disc)
		}
	})

	t.Run("plain end is not a kick", func(t *testing.T) {
		fake := protocoltest.NewFake()
		col := &collector{}
		dialFake(t, fake, Config{Handler: col.handle, Logger: zerolog.Nop()})

		fake.EmitEnd("socket closed")

		got := col.waitLen(t, 1)
		disc := got[0].(DisconnectedEvent)
		if disc.Kicked || disc.Reason != "socket closed" {
			t.Errorf("Unexpected disconnect: %+v", disc)
		}
	})

	t.Run("no events after terminate", func(t *testing.T) {
		fake := protocoltest.NewFake()
		col := &collector{}
		a := dialFake(t, fake, Config{Handler: col.handle, Logger: zerolog.Nop()})

		a.Terminate()
		fake.EmitChat("Alex", "hi")
		fake.EmitEnd("gone")

		time.Sleep(20 * time.Millisecond)
		if got := col.all(); len(got) != 0 {
			t.Errorf("Expected no events after terminate, got %v", got)
		}
	})
}

func TestTelemetry(t *testing.T) {
	fake := protocoltest.NewFake()
	fake.Latency = 45
	fake.Pos = protocol.Position{X: 10, Y: 64, Z: -3}
	fake.HasPos = true
	fake.PlayerList = []protocol.Player{{Username: "Alex", Ping: 20}}
	col := &collector{}
	dialFake(t, fake, Config{
		Handler:           col.handle,
		Logger:            zerolog.Nop(),
		TelemetryInterval: 5 * time.Millisecond,
	})

	got := col.waitLen(t, 1)
	tel, ok := got[0].(TelemetryEvent)
	if !ok {
		t.Fatalf("Expected TelemetryEvent, got %T", got[0])
	}
	if tel.Ping != 45 || !tel.HasPosition || tel.Position.X != 10 {
		t.Errorf("Unexpected telemetry: %+v", tel)
	}
	if len(tel.Players) != 1 || tel.MaxPlayers != 20 {
		t.Errorf("Unexpected player snapshot: %+v", tel)
	}
}
