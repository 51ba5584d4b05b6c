package adapter

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/crafthub/craftrelay/bot/protocol/protocoltest"
)

func TestRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"chat format code", errors.New("unknown chat format code: &x"), true},
		{"undefined field", errors.New("cannot read properties of undefined"), true},
		{"vec3", errors.New("Vec3 expected 3 arguments"), true},
		{"physics tick", errors.New("physics engine desync"), true},
		{"explosion packet", errors.New("unknown explosion packet shape"), true},
		{"partial packet", errors.New("partial packet at offset 12"), true},
		{"timeout", errors.New("keepalive timed out"), true},
		{"auth failure", errors.New("invalid session token"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Recoverable(tt.err); got != tt.want {
				t.Errorf("Recoverable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorContainment(t *testing.T) {
	t.Run("recoverable error stays non-fatal", func(t *testing.T) {
		fake := protocoltest.NewFake()
		col := &collector{}
		a := dialFake(t, fake, Config{Handler: col.handle, Logger: zerolog.Nop()})

		fake.EmitError(errors.New("unknown chat format code: &k"))

		got := col.waitLen(t, 1)
		ev, ok := got[0].(ErrorEvent)
		if !ok {
			t.Fatalf("Expected ErrorEvent, got %T", got[0])
		}
		if !ev.Recoverable {
			t.Error("Expected recoverable classification")
		}
		if a.Terminated() {
			t.Error("Expected adapter to survive a recoverable error")
		}
		if fake.Quitted() {
			t.Error("Expected client to stay up after a recoverable error")
		}
	})

	t.Run("unknown error is reported but never fatal", func(t *testing.T) {
		fake := protocoltest.NewFake()
		col := &collector{}
		a := dialFake(t, fake, Config{Handler: col.handle, Logger: zerolog.Nop()})

		fake.EmitError(errors.New("invalid session token"))

		got := col.waitLen(t, 1)
		ev := got[0].(ErrorEvent)
		if ev.Recoverable {
			t.Error("Expected non-recoverable classification")
		}
		if a.Terminated() || fake.Quitted() {
			t.Error("Expected containment to keep the session alive")
		}
	})

	t.Run("handler panic is recovered", func(t *testing.T) {
		fake := protocoltest.NewFake()
		col := &collector{}
		handler := func(ev Event) {
			if _, ok := ev.(ChatEvent); ok {
				panic("translator bug")
			}
			col.handle(ev)
		}
		a := dialFake(t, fake, Config{Handler: handler, Logger: zerolog.Nop()})

		fake.EmitChat("Alex", "boom")
		fake.EmitDeath()

		got := col.waitLen(t, 2)
		if _, ok := got[0].(ErrorEvent); !ok {
			t.Errorf("Expected contained panic as ErrorEvent, got %T", got[0])
		}
		if _, ok := got[1].(DeathEvent); !ok {
			t.Errorf("Expected stream to continue after the panic, got %T", got[1])
		}
		if a.Terminated() {
			t.Error("Expected adapter to survive the panic")
		}
	})
}
