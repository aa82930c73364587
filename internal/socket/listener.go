// Package socket drives the push notification loop: acquire a device
// registration, open its websocket, filter inbound frames, resolve accepted
// notifications into full messages and hand them to the dispatcher.
package socket

import (
	"context"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/keepmind9/botsocket/internal/logger"
	"github.com/keepmind9/botsocket/internal/webex"
	"github.com/keepmind9/botsocket/pkg/constants"
	"github.com/sirupsen/logrus"
)

// State of the run loop
type State string

const (
	StateStopped   State = "stopped"
	StateAcquiring State = "acquiring" // device registration + self lookup in progress
	StateListening State = "listening" // socket open, reading frames
)

// PlatformAPI is the REST surface the listener depends on.
// *webex.Client satisfies it.
type PlatformAPI interface {
	EnsureDevice(ctx context.Context, name string, forceRecreate bool) (*webex.Device, error)
	Me(ctx context.Context) (*webex.Person, error)
	GetMessage(ctx context.Context, ref string) (*webex.Message, error)
}

// Submitter receives resolved messages for handler execution.
// *dispatch.Dispatcher satisfies it.
type Submitter interface {
	Submit(ctx context.Context, msg *webex.Message)
}

// Options configures a BotSocket
type Options struct {
	DeviceName    string
	ForceRecreate bool // always issue a fresh device instead of reusing one
	// Auth is the Authorization header value supplied on the socket dial,
	// the same bearer credential used for REST calls
	Auth           string
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// BotSocket owns the long-lived socket connection and the registration
// cycle around it. The loop has no terminal state under normal operation;
// it stops only when the Run context is cancelled.
type BotSocket struct {
	api        PlatformAPI
	dispatcher Submitter
	opts       Options
	dialer     *websocket.Dialer

	mu    sync.RWMutex
	state State
}

// NewBotSocket creates a listener. Zero backoff options fall back to the
// package defaults.
func NewBotSocket(api PlatformAPI, dispatcher Submitter, opts Options) *BotSocket {
	if opts.BackoffInitial <= 0 {
		opts.BackoffInitial = constants.DefaultBackoffInitial
	}
	if opts.BackoffMax < opts.BackoffInitial {
		opts.BackoffMax = constants.DefaultBackoffMax
	}
	return &BotSocket{
		api:        api,
		dispatcher: dispatcher,
		opts:       opts,
		dialer:     websocket.DefaultDialer,
		state:      StateStopped,
	}
}

// State returns the current run loop state
func (b *BotSocket) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *BotSocket) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// Run executes registration cycles until ctx is cancelled: acquire device,
// refresh the ignore-set, open the socket, read frames. Any disconnect or
// cycle failure falls through to the next cycle; consecutive failures back
// off exponentially with jitter. The backoff resets only once a connection
// survives MinHealthySession, so a backend that accepts the upgrade and
// drops it immediately still backs off. Returns ctx.Err() once stopped.
func (b *BotSocket) Run(ctx context.Context) error {
	defer b.setState(StateStopped)

	backoff := b.opts.BackoffInitial
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		b.setState(StateAcquiring)
		session, err := b.cycle(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			logger.WithFields(logrus.Fields{
				"device_name": b.opts.DeviceName,
				"error":       err,
			}).Error("registration-cycle-failed")
		}

		if session >= constants.MinHealthySession {
			backoff = b.opts.BackoffInitial
			continue
		}

		delay := jitter(backoff)
		logger.WithField("delay", delay.String()).Debug("backing-off-before-reconnect")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		backoff *= 2
		if backoff > b.opts.BackoffMax {
			backoff = b.opts.BackoffMax
		}
	}
}

// cycle runs one registration cycle. session reports how long the socket
// stayed open; zero means the socket was never established.
func (b *BotSocket) cycle(ctx context.Context) (session time.Duration, err error) {
	device, err := b.api.EnsureDevice(ctx, b.opts.DeviceName, b.opts.ForceRecreate)
	if err != nil {
		return 0, err
	}

	me, err := b.api.Me(ctx)
	if err != nil {
		return 0, err
	}
	// messages from our own aliases must not trigger replies
	ignore := make(map[string]struct{}, len(me.Emails))
	for _, email := range me.Emails {
		ignore[email] = struct{}{}
	}

	header := http.Header{"Authorization": []string{b.opts.Auth}}
	conn, resp, err := b.dialer.DialContext(ctx, device.WebSocketURL, header)
	if err != nil {
		if resp != nil {
			logger.WithFields(logrus.Fields{
				"url":    device.WebSocketURL,
				"status": resp.StatusCode,
			}).Error("socket-dial-rejected")
		}
		return 0, err
	}

	started := time.Now()
	b.listen(ctx, conn, ignore)
	return time.Since(started), nil
}

// listen reads frames until the connection drops or ctx is cancelled.
// Accepted frames are resolved on independent goroutines so a slow resolve
// never stalls subsequent reads.
func (b *BotSocket) listen(ctx context.Context, conn *websocket.Conn, ignore map[string]struct{}) {
	b.setState(StateListening)

	connID := uuid.NewString()
	logger.WithField("conn_id", connID).Info("socket-connected")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	conn.SetReadLimit(constants.MaxFrameSize)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			logger.WithFields(logrus.Fields{
				"conn_id": connID,
				"error":   err,
			}).Info("socket-closed")
			return
		}

		notification := decodeNotification(raw, ignore)
		if notification == nil {
			continue
		}
		go b.resolve(ctx, notification)
	}
}

// resolve fetches the full message behind a notification and submits it for
// dispatch. Any failure drops the notification silently; notifications are
// not acknowledged or retried by the platform, so best-effort is the policy.
func (b *BotSocket) resolve(ctx context.Context, notification *Notification) {
	msg, err := b.api.GetMessage(ctx, notification.MessageRef)
	if err != nil || msg == nil {
		logger.WithFields(logrus.Fields{
			"ref":   notification.MessageRef,
			"error": err,
		}).Debug("dropping-unresolvable-notification")
		return
	}
	b.dispatcher.Submit(ctx, msg)
}

// jitter spreads a delay over [d/2, d] so parallel reconnect attempts do not
// synchronize against a recovering backend
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
