package notification

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"reversal-traderv1/internal/agent"
)

// testSecret is a valid base32 TOTP secret for code generation.
const testSecret = "JBSWY3DPEHPK3PXP"

type fakeController struct {
	agents []agent.Info
	drain  bool
	pause  bool
}

func (f *fakeController) Agents() []agent.Info { return f.agents }
func (f *fakeController) SetDrain(v bool)      { f.drain = v }
func (f *fakeController) SetPause(v bool)      { f.pause = v }
func (f *fakeController) Drained() bool        { return f.drain }
func (f *fakeController) Paused() bool         { return f.pause }

func validCode(t *testing.T) string {
	t.Helper()
	code, err := totp.GenerateCode(testSecret, time.Now())
	if err != nil {
		t.Fatalf("generate totp: %v", err)
	}
	return code
}

func newTestCommander(core Controller) *Commander {
	return NewCommander(nil, core, testSecret, 42)
}

func TestHandle_NonCommandsIgnored(t *testing.T) {
	c := newTestCommander(&fakeController{})
	for _, text := range []string{"", "hello", "status without slash"} {
		if reply := c.handle(text); reply != "" {
			t.Errorf("handle(%q) = %q, want empty", text, reply)
		}
	}
}

func TestHandle_UnknownCommand(t *testing.T) {
	c := newTestCommander(&fakeController{})
	if reply := c.handle("/selfdestruct"); !strings.Contains(reply, "/help") {
		t.Fatalf("expected help pointer, got %q", reply)
	}
}

func TestHandle_Status(t *testing.T) {
	core := &fakeController{agents: []agent.Info{
		{Symbol: "AAA-USDT", State: agent.StatePosition, Running: true},
		{Symbol: "BBB-USDT", State: agent.StateIdle, Running: true},
		{Symbol: "CCC-USDT", State: agent.StateSelling, Running: false},
	}}
	c := newTestCommander(core)

	reply := c.handle("/status")
	if !strings.Contains(reply, "agents: 3 (2 running, 2 with exposure)") {
		t.Fatalf("unexpected status text: %q", reply)
	}
}

func TestHandle_DrainRequiresValidCode(t *testing.T) {
	core := &fakeController{}
	c := newTestCommander(core)

	if reply := c.handle("/drain on 000000"); reply != "invalid code" {
		t.Fatalf("expected rejection, got %q", reply)
	}
	if core.drain {
		t.Fatal("drain must not change on invalid code")
	}

	reply := c.handle("/drain on " + validCode(t))
	if !strings.Contains(reply, "drain mode: true") {
		t.Fatalf("expected confirmation, got %q", reply)
	}
	if !core.drain {
		t.Fatal("expected drain enabled")
	}

	c.handle("/drain off " + validCode(t))
	if core.drain {
		t.Fatal("expected drain disabled")
	}
}

func TestHandle_PauseToggles(t *testing.T) {
	core := &fakeController{}
	c := newTestCommander(core)

	c.handle("/pause on " + validCode(t))
	if !core.pause {
		t.Fatal("expected pause enabled")
	}
}

func TestHandleMode_Usage(t *testing.T) {
	c := newTestCommander(&fakeController{})

	tests := []struct {
		name string
		text string
	}{
		{"missing code", "/drain on"},
		{"missing mode", "/drain"},
		{"bad mode word", "/drain maybe 123456"},
		{"extra fields", "/drain on 123456 now"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if reply := c.handle(tt.text); !strings.HasPrefix(reply, "usage:") {
				t.Errorf("handle(%q) = %q, want usage text", tt.text, reply)
			}
		})
	}
}
