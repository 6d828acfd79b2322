package notification

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"reversal-traderv1/internal/agent"
)

// Controller is the subset of the orchestrator the bot drives.
type Controller interface {
	Agents() []agent.Info
	SetDrain(v bool)
	SetPause(v bool)
	Drained() bool
	Paused() bool
}

// Commander long-polls the Telegram Bot API and executes control
// commands. State-changing commands (/drain, /pause) require a valid
// TOTP code so a compromised chat cannot silently toggle trading.
type Commander struct {
	notifier   *TelegramNotifier
	core       Controller
	totpSecret string
	chatID     int64
}

// NewCommander creates a commander bound to one chat.
func NewCommander(notifier *TelegramNotifier, core Controller, totpSecret string, chatID int64) *Commander {
	return &Commander{
		notifier:   notifier,
		core:       core,
		totpSecret: totpSecret,
		chatID:     chatID,
	}
}

// Run long-polls for commands until ctx is cancelled.
func (c *Commander) Run(ctx context.Context) {
	var offset int64
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := c.notifier.getUpdates(ctx, offset, 30*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[commander] poll failed: %v, retrying in 10s", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(10 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message == nil || u.Message.Chat.ID != c.chatID {
				continue
			}
			reply := c.handle(u.Message.Text)
			if reply == "" {
				continue
			}
			chat := fmt.Sprintf("%d", u.Message.Chat.ID)
			if err := c.notifier.sendMessage(ctx, chat, reply, ""); err != nil {
				log.Printf("[commander] reply failed: %v", err)
			}
		}
	}
}

// handle parses one command message and returns the reply text.
func (c *Commander) handle(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}

	switch fields[0] {
	case "/status":
		return c.statusText()
	case "/drain":
		return c.handleMode(fields, "drain", c.core.SetDrain)
	case "/pause":
		return c.handleMode(fields, "pause", c.core.SetPause)
	case "/help":
		return "commands:\n/status\n/drain on|off <totp>\n/pause on|off <totp>"
	default:
		return "unknown command, try /help"
	}
}

// handleMode parses "/x on|off <totp>" and applies it when authorized.
func (c *Commander) handleMode(fields []string, name string, set func(bool)) string {
	if len(fields) != 3 {
		return fmt.Sprintf("usage: /%s on|off <totp>", name)
	}

	var enabled bool
	switch strings.ToLower(fields[1]) {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		return fmt.Sprintf("usage: /%s on|off <totp>", name)
	}

	if !totp.Validate(fields[2], c.totpSecret) {
		log.Printf("[commander] rejected /%s: invalid totp", name)
		return "invalid code"
	}

	set(enabled)
	log.Printf("[commander] %s mode set to %v", name, enabled)
	return fmt.Sprintf("%s mode: %v", name, enabled)
}

func (c *Commander) statusText() string {
	agents := c.core.Agents()
	running := 0
	inPosition := 0
	for _, a := range agents {
		if a.Running {
			running++
		}
		if a.State == agent.StatePosition || a.State == agent.StateSelling {
			inPosition++
		}
	}
	return fmt.Sprintf("agents: %d (%d running, %d with exposure)\ndrain: %v\npause: %v",
		len(agents), running, inPosition, c.core.Drained(), c.core.Paused())
}
