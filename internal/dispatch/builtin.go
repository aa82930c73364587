package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/keepmind9/botsocket/internal/webex"
)

// helpSentinel marks entries hidden from the /help listing, such as the
// greeting catch-all
const helpSentinel = "*"

// sendHelp lists all visible commands with their help text
func (d *Dispatcher) sendHelp(ctx context.Context, msg *webex.Message) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var b strings.Builder
	b.WriteString("Hello!  I understand the following commands:  \n")
	for _, c := range d.commands {
		if strings.HasPrefix(c.help, helpSentinel) {
			continue
		}
		fmt.Fprintf(&b, "* **%s**: %s \n", c.token, c.help)
	}
	return b.String(), nil
}

// sendEcho replies with the text following the /echo token
func (d *Dispatcher) sendEcho(ctx context.Context, msg *webex.Message) (string, error) {
	return strings.TrimSpace(ExtractMessage("/echo", msg.Text)), nil
}

// ExtractMessage returns the message contents following the given command
// token, or the whole text when the token is absent
func ExtractMessage(token, text string) string {
	loc := strings.Index(text, token)
	if loc < 0 {
		return text
	}
	return text[loc+len(token):]
}
