package socket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/keepmind9/botsocket/internal/webex"
	"github.com/stretchr/testify/assert"
)

const testFrame = `{"data":{"eventType":"conversation.activity","activity":{"verb":"post","id":"msg-1","actor":{"emailAddress":"user@example.com"}}}}`

// fakeAPI implements PlatformAPI against in-memory data
type fakeAPI struct {
	mu          sync.Mutex
	ensureCalls int
	wsURL       string
	ensureErr   error
	getErr      error
}

func (f *fakeAPI) EnsureDevice(ctx context.Context, name string, forceRecreate bool) (*webex.Device, error) {
	f.mu.Lock()
	f.ensureCalls++
	f.mu.Unlock()
	if f.ensureErr != nil {
		return nil, f.ensureErr
	}
	return &webex.Device{Name: name, WebSocketURL: f.wsURL}, nil
}

func (f *fakeAPI) Me(ctx context.Context) (*webex.Person, error) {
	return &webex.Person{ID: "me", Emails: []string{"bot@webex.bot"}}, nil
}

func (f *fakeAPI) GetMessage(ctx context.Context, ref string) (*webex.Message, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &webex.Message{ID: ref, RoomID: "room-1", PersonEmail: "user@example.com", Text: "/echo hi"}, nil
}

func (f *fakeAPI) acquisitions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ensureCalls
}

// fakeSubmitter collects resolved messages
type fakeSubmitter struct {
	mu   sync.Mutex
	msgs []*webex.Message
}

func (s *fakeSubmitter) Submit(ctx context.Context, msg *webex.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *fakeSubmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

// newSocketServer serves a websocket endpoint that pushes the given frames
// and then closes the connection
func newSocketServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testOptions() Options {
	return Options{
		DeviceName:     "botsocket-test",
		Auth:           "Bearer test-token",
		BackoffInitial: 5 * time.Millisecond,
		BackoffMax:     20 * time.Millisecond,
	}
}

func TestBotSocket_DeliversResolvedMessages(t *testing.T) {
	srv := newSocketServer(t, testFrame)
	defer srv.Close()

	api := &fakeAPI{wsURL: wsURL(srv)}
	submitter := &fakeSubmitter{}
	bot := NewBotSocket(api, submitter, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- bot.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return submitter.count() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	submitter.mu.Lock()
	msg := submitter.msgs[0]
	submitter.mu.Unlock()
	assert.Equal(t, "msg-1", msg.ID)
	assert.Equal(t, "room-1", msg.RoomID)

	cancel()
	assert.ErrorIs(t, <-runDone, context.Canceled)
	assert.Equal(t, StateStopped, bot.State())
}

func TestBotSocket_ReconnectsAfterSocketClose(t *testing.T) {
	// the server closes each connection after one frame, so every cycle ends
	// in a disconnect and the loop must re-acquire the device
	srv := newSocketServer(t, testFrame)
	defer srv.Close()

	api := &fakeAPI{wsURL: wsURL(srv)}
	submitter := &fakeSubmitter{}
	bot := NewBotSocket(api, submitter, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- bot.Run(ctx) }()

	// exactly one new acquisition cycle per closure, repeatedly
	assert.Eventually(t, func() bool {
		return api.acquisitions() >= 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-runDone, context.Canceled)
}

func TestBotSocket_BacksOffAfterShortLivedSessions(t *testing.T) {
	// the server accepts the upgrade and closes at once; every session is
	// far below the healthy threshold, so the loop must keep backing off
	// instead of re-registering in a tight loop
	srv := newSocketServer(t)
	defer srv.Close()

	api := &fakeAPI{wsURL: wsURL(srv)}
	bot := NewBotSocket(api, &fakeSubmitter{}, Options{
		DeviceName:     "botsocket-test",
		Auth:           "Bearer test-token",
		BackoffInitial: 50 * time.Millisecond,
		BackoffMax:     200 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- bot.Run(ctx) }()

	time.Sleep(300 * time.Millisecond)
	cancel()
	<-runDone

	// each cycle completes in well under a millisecond, so anything beyond
	// a handful of acquisitions in the window means the delays were skipped
	got := api.acquisitions()
	assert.GreaterOrEqual(t, got, 2)
	assert.LessOrEqual(t, got, 8)
}

func TestBotSocket_KeepsRetryingWhenAcquisitionFails(t *testing.T) {
	api := &fakeAPI{ensureErr: errors.New("registry unavailable")}
	submitter := &fakeSubmitter{}
	bot := NewBotSocket(api, submitter, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- bot.Run(ctx) }()

	// transport failures never terminate the loop
	assert.Eventually(t, func() bool {
		return api.acquisitions() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-runDone, context.Canceled)
	assert.Equal(t, StateStopped, bot.State())
}

func TestBotSocket_ResolveDropsFailures(t *testing.T) {
	api := &fakeAPI{getErr: &webex.StatusError{Code: http.StatusNotFound}}
	submitter := &fakeSubmitter{}
	bot := NewBotSocket(api, submitter, testOptions())

	bot.resolve(context.Background(), &Notification{MessageRef: "gone"})

	// dispatch is never invoked for an unresolvable notification
	assert.Zero(t, submitter.count())
}

func TestBotSocket_IgnoresOwnMessages(t *testing.T) {
	ownFrame := `{"data":{"eventType":"conversation.activity","activity":{"verb":"post","id":"msg-2","actor":{"emailAddress":"bot@webex.bot"}}}}`
	srv := newSocketServer(t, ownFrame, testFrame)
	defer srv.Close()

	api := &fakeAPI{wsURL: wsURL(srv)}
	submitter := &fakeSubmitter{}
	bot := NewBotSocket(api, submitter, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- bot.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return submitter.count() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-runDone

	// only the frame from the other account made it through
	submitter.mu.Lock()
	defer submitter.mu.Unlock()
	for _, msg := range submitter.msgs {
		assert.Equal(t, "msg-1", msg.ID)
	}
}

func TestNewBotSocket_DefaultsBackoff(t *testing.T) {
	bot := NewBotSocket(&fakeAPI{}, &fakeSubmitter{}, Options{DeviceName: "x"})

	assert.Greater(t, bot.opts.BackoffInitial, time.Duration(0))
	assert.GreaterOrEqual(t, bot.opts.BackoffMax, bot.opts.BackoffInitial)
	assert.Equal(t, StateStopped, bot.State())
}

func TestJitter(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := jitter(100 * time.Millisecond)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}
	assert.Equal(t, time.Duration(0), jitter(0))
}
