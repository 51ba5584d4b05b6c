package protocol

import "testing"

func TestParseServerAddr(t *testing.T) {
	t.Run("host with port", func(t *testing.T) {
		host, port, err := ParseServerAddr("mc.example.com:19132")
		if err != nil {
			t.Fatalf("ParseServerAddr failed: %v", err)
		}
		if host != "mc.example.com" || port != 19132 {
			t.Errorf("Expected mc.example.com:19132, got %s:%d", host, port)
		}
	})

	t.Run("missing port defaults", func(t *testing.T) {
		host, port, err := ParseServerAddr("localhost")
		if err != nil {
			t.Fatalf("ParseServerAddr failed: %v", err)
		}
		if host != "localhost" || port != DefaultPort {
			t.Errorf("Expected localhost:%d, got %s:%d", DefaultPort, host, port)
		}
	})

	t.Run("trailing colon defaults", func(t *testing.T) {
		_, port, err := ParseServerAddr("localhost:")
		if err != nil {
			t.Fatalf("ParseServerAddr failed: %v", err)
		}
		if port != DefaultPort {
			t.Errorf("Expected default port, got %d", port)
		}
	})

	t.Run("invalid port", func(t *testing.T) {
		if _, _, err := ParseServerAddr("localhost:abc"); err == nil {
			t.Error("Expected error for non-numeric port")
		}
		if _, _, err := ParseServerAddr("localhost:70000"); err == nil {
			t.Error("Expected error for out-of-range port")
		}
	})

	t.Run("empty address", func(t *testing.T) {
		if _, _, err := ParseServerAddr("  "); err == nil {
			t.Error("Expected error for blank address")
		}
	})
}

func TestParseControl(t *testing.T) {
	t.Run("crouch aliases sneak", func(t *testing.T) {
		ctrl, err := ParseControl("crouch")
		if err != nil {
			t.Fatalf("ParseControl failed: %v", err)
		}
		if ctrl != ControlSneak {
			t.Errorf("Expected %q, got %q", ControlSneak, ctrl)
		}
	})

	t.Run("all directions", func(t *testing.T) {
		for _, dir := range []string{"forward", "back", "left", "right", "jump", "sneak"} {
			if _, err := ParseControl(dir); err != nil {
				t.Errorf("ParseControl(%q) failed: %v", dir, err)
			}
		}
	})

	t.Run("unknown direction", func(t *testing.T) {
		if _, err := ParseControl("strafe"); err == nil {
			t.Error("Expected error for unknown direction")
		}
	})
}

func TestParseAuthMode(t *testing.T) {
	if got := ParseAuthMode("microsoft"); got != AuthMicrosoft {
		t.Errorf("Expected microsoft, got %q", got)
	}
	if got := ParseAuthMode("cracked"); got != AuthOffline {
		t.Errorf("Expected offline fallback, got %q", got)
	}
}
