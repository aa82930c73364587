// Package dispatch maintains the command table and runs handlers for
// resolved messages on a bounded worker pool, posting non-empty replies back
// into the originating room.
package dispatch

import (
	"context"
	"strings"
	"sync"

	"github.com/keepmind9/botsocket/internal/logger"
	"github.com/keepmind9/botsocket/internal/webex"
	"github.com/keepmind9/botsocket/pkg/constants"
	"github.com/sirupsen/logrus"
)

// Handler processes a resolved message and returns an optional reply.
// An empty reply means nothing is posted. Errors are logged and suppressed;
// a failing handler never produces a reply.
type Handler interface {
	Handle(ctx context.Context, msg *webex.Message) (string, error)
}

// HandlerFunc adapts a plain function to the Handler interface
type HandlerFunc func(ctx context.Context, msg *webex.Message) (string, error)

// Handle calls f
func (f HandlerFunc) Handle(ctx context.Context, msg *webex.Message) (string, error) {
	return f(ctx, msg)
}

// MessagePoster posts replies into a room. *webex.Client satisfies it.
type MessagePoster interface {
	PostMessage(ctx context.Context, roomID, markdown string) error
}

// command is one command table entry
type command struct {
	token   string
	help    string
	handler Handler
}

// Dispatcher selects and runs a handler for each resolved message.
//
// The command table keeps insertion order: lookup scans entries in the order
// they were registered and the first token found anywhere within the message
// text wins. Callers must not rely on that order to disambiguate overlapping
// tokens.
type Dispatcher struct {
	mu         sync.RWMutex
	commands   []command
	defaultCmd string // token run when nothing matches; empty disables fallback

	poster  MessagePoster
	workers int
	jobs    chan *webex.Message
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the built-in /echo and /help
// commands registered. workers <= 0 falls back to the default pool size.
func NewDispatcher(poster MessagePoster, workers int) *Dispatcher {
	if workers <= 0 {
		workers = constants.DefaultWorkerCount
	}
	d := &Dispatcher{
		poster:  poster,
		workers: workers,
		jobs:    make(chan *webex.Message, constants.DispatchQueueSize),
	}
	d.AddCommand("/echo", "Reply back with the same message sent.", HandlerFunc(d.sendEcho))
	d.AddCommand("/help", "Get help.", HandlerFunc(d.sendHelp))
	return d
}

// AddCommand registers a command. Re-registering an existing token replaces
// its entry in place, keeping the original table position.
// Safe to call before and while the worker pool is running.
func (d *Dispatcher) AddCommand(token, help string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, c := range d.commands {
		if c.token == token {
			d.commands[i] = command{token: token, help: help, handler: handler}
			return
		}
	}
	d.commands = append(d.commands, command{token: token, help: help, handler: handler})
}

// RemoveCommand removes a command from the table. Removing the default
// command also clears the default-action pointer.
func (d *Dispatcher) RemoveCommand(token string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, c := range d.commands {
		if c.token == token {
			d.commands = append(d.commands[:i], d.commands[i+1:]...)
			break
		}
	}
	if d.defaultCmd == token {
		d.defaultCmd = ""
	}
}

// SetDefault selects the command run when no token is found in a message.
// An empty token disables fallback dispatch.
func (d *Dispatcher) SetDefault(token string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.defaultCmd = token
}

// SetGreeting registers a hidden catch-all handler and makes it the default
// action. The sentinel help text keeps it out of the /help listing.
func (d *Dispatcher) SetGreeting(handler Handler) {
	d.AddCommand("/greeting", helpSentinel, handler)
	d.SetDefault("/greeting")
}

// Start launches the worker pool. Workers exit when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-d.jobs:
					d.process(ctx, msg)
				}
			}
		}()
	}
}

// Wait blocks until all workers have exited
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Submit queues a resolved message for dispatch. Blocks only when the queue
// is full, and gives up when ctx is cancelled.
func (d *Dispatcher) Submit(ctx context.Context, msg *webex.Message) {
	select {
	case d.jobs <- msg:
	case <-ctx.Done():
	}
}

// selectCommand scans the table in insertion order for the first token
// appearing anywhere within text, falling back to the default command
func (d *Dispatcher) selectCommand(text string) (command, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, c := range d.commands {
		if strings.Contains(text, c.token) {
			return c, true
		}
	}
	if d.defaultCmd != "" {
		for _, c := range d.commands {
			if c.token == d.defaultCmd {
				return c, true
			}
		}
	}
	return command{}, false
}

// process runs a single dispatch cycle: select a handler, invoke it, post a
// non-empty reply. Every resolved message triggers at most one invocation.
func (d *Dispatcher) process(ctx context.Context, msg *webex.Message) {
	cmd, ok := d.selectCommand(msg.Text)
	if !ok {
		logger.WithField("room", msg.RoomID).Debug("no-command-matched-and-no-default-configured")
		return
	}

	logger.WithFields(logrus.Fields{
		"command": cmd.token,
		"room":    msg.RoomID,
		"sender":  msg.PersonEmail,
	}).Debug("dispatching-command")

	reply := d.invoke(ctx, cmd, msg)
	if reply == "" {
		return
	}

	if err := d.poster.PostMessage(ctx, msg.RoomID, reply); err != nil {
		// delivery failures are logged, never retried
		logger.WithFields(logrus.Fields{
			"command": cmd.token,
			"room":    msg.RoomID,
			"error":   err,
		}).Error("failed-to-post-reply")
	}
}

// invoke runs one handler, absorbing errors and panics so a misbehaving
// handler never takes down a worker
func (d *Dispatcher) invoke(ctx context.Context, cmd command, msg *webex.Message) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"command": cmd.token,
				"panic":   r,
			}).Error("handler-panic-recovered")
			reply = ""
		}
	}()

	reply, err := cmd.handler.Handle(ctx, msg)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"command": cmd.token,
			"error":   err,
		}).Error("handler-failed")
		return ""
	}
	return reply
}
