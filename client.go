package tally

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/gissleh/tally/metric"
)

// ErrNoConnection is returned if you try to do something requiring a connection,
// but there is none.
var ErrNoConnection = errors.New("tally: no connection")

// A State is a position in the connection state machine.
type State int

// The connection states. There is no terminal state; the client loops back to
// StateDisconnected and retries on every failure until it's destroyed.
const (
	StateDisconnected State = iota
	StateConnecting
	StateRegistering
	StateActive
)

func (state State) String() string {
	switch state {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateRegistering:
		return "registering"
	case StateActive:
		return "active"
	default:
		return "invalid"
	}
}

// A Client is a bot connection. You need to use New to construct it. It owns
// one connection at a time, reconnects with a fixed backoff when it's lost,
// and paces queued sends through a shared rate bucket.
type Client struct {
	id     string
	config Config

	mutex   sync.RWMutex
	conn    net.Conn
	connSeq int
	ctx     context.Context
	cancel  context.CancelFunc

	events chan *Event

	state        State
	quit         bool
	serverPrefix string

	// The queue and pacing flag are only touched by the event loop.
	queue         []string
	pacingPending bool

	pacing    *debouncedTimer
	keepalive *debouncedTimer
	reconnect *debouncedTimer

	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *metric.Metrics

	handlers []Handler
}

// New creates a new client and schedules the first connection attempt. It
// fails if the config is missing required fields; nothing is dialed in that
// case. The context can be context.Background if you want to manually tear
// down clients upon quitting.
func New(ctx context.Context, config Config) (*Client, error) {
	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := &Client{
		id:      uuid.NewString(),
		config:  config,
		events:  make(chan *Event, 64),
		state:   StateDisconnected,
		limiter: Bucket(config.RateBucket, config.SendInterval),
		logger:  config.Logger,
		metrics: config.Metrics,
	}

	client.pacing = newDebouncedTimer("pacing", client.emitTimer)
	client.keepalive = newDebouncedTimer("keepalive", client.emitTimer)
	client.reconnect = newDebouncedTimer("reconnect", client.emitTimer)

	client.ctx, client.cancel = context.WithCancel(ctx)

	go client.handleEventLoop()

	// First connection attempt happens on the loop's next tick.
	client.reconnect.Reschedule(0)

	return client, nil
}

// Context gets the client's context. It's cancelled if the parent context used
// in New is, or Destroy is called.
func (client *Client) Context() context.Context {
	return client.ctx
}

// ID gets the unique identifier for the client, which could be used in data structures
func (client *Client) ID() string {
	return client.id
}

// Nick gets the nick the client registers and listens to.
func (client *Client) Nick() string {
	return client.config.Nick
}

// State gets the current connection state.
func (client *Client) State() State {
	client.mutex.RLock()
	defer client.mutex.RUnlock()

	return client.state
}

// Connected returns true if the client has a connection
func (client *Client) Connected() bool {
	client.mutex.RLock()
	defer client.mutex.RUnlock()

	return client.conn != nil
}

// AddHandler adds a handler that will receive every event passing through the
// event loop.
func (client *Client) AddHandler(handler Handler) {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	client.handlers = append(client.handlers, handler)
}

// Disconnect disconnects from the server and stops the reconnect cycle. It
// will either return the close error, or ErrNoConnection if there is no
// connection.
func (client *Client) Disconnect() error {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	client.quit = true

	if client.conn == nil {
		return ErrNoConnection
	}

	return client.conn.Close()
}

// Destroy destroys the client, which will lead to a disconnect. Cancelling the
// parent context will do the same.
func (client *Client) Destroy() {
	_ = client.Disconnect()
	client.cancel()
}

// Destroyed returns true if the client has been destroyed, either by
// Destroy or the parent context.
func (client *Client) Destroyed() bool {
	select {
	case <-client.ctx.Done():
		return true
	default:
		return false
	}
}

// Send sends a line to the server right away, bypassing the queue and the
// rate bucket. It's the right thing for PONG replies, which must not wait
// behind paced traffic, and the wrong thing for nearly everything else; use
// SendQueued for normal traffic. A line-feed will be automatically added if
// one is not provided.
func (client *Client) Send(line string) error {
	client.mutex.RLock()
	conn := client.conn
	client.mutex.RUnlock()

	if conn == nil {
		return ErrNoConnection
	}

	if !strings.HasSuffix(line, "\n") {
		line += "\r\n"
	}

	_, err := conn.Write([]byte(line))
	if err != nil {
		client.EmitNonBlocking(NewErrorEvent("network", err.Error()))
		client.closeConn()

		return err
	}

	client.logger.Debug("send", "line", strings.TrimRight(line, "\r\n"))
	client.metrics.LinesSent.Inc()

	return nil
}

// Sendf is Send with a fmt.Sprintf
func (client *Client) Sendf(format string, a ...interface{}) error {
	return client.Send(fmt.Sprintf(format, a...))
}

// SendQueued appends a line to the outbound queue. Queued lines go out in
// submission order, one per rate-bucket window. The queue is dropped if the
// connection is lost before it drains.
func (client *Client) SendQueued(line string) {
	event := NewEvent("send", "queued")
	event.Text = line

	client.EmitNonBlocking(event)
}

// SendQueuedf is SendQueued with a fmt.Sprintf
func (client *Client) SendQueuedf(format string, a ...interface{}) {
	client.SendQueued(fmt.Sprintf(format, a...))
}

// Say queues a PRIVMSG to the target.
func (client *Client) Say(targetName string, text string) {
	client.SendQueuedf("PRIVMSG %s :%s", targetName, text)
}

// Sayf is Say with a fmt.Sprintf
func (client *Client) Sayf(targetName string, format string, a ...interface{}) {
	client.Say(targetName, fmt.Sprintf(format, a...))
}

// Emit sends an event through the client's event loop, and it will return
// immediately unless the internal channel is filled up. The returned context
// can be used to wait for the event, or the client's destruction.
func (client *Client) Emit(event Event) context.Context {
	event.ctx, event.cancel = context.WithCancel(client.ctx)
	client.events <- &event

	return event.ctx
}

// EmitNonBlocking is just like Emit, but it will spin off a goroutine if the channel is full.
// This lets it be called from other handlers without ever blocking. See Emit for what the
// returned context is for.
func (client *Client) EmitNonBlocking(event Event) context.Context {
	event.ctx, event.cancel = context.WithCancel(client.ctx)

	select {
	case client.events <- &event:
	default:
		go func() { client.events <- &event }()
	}

	return event.ctx
}

// EmitSync emits an event and waits for either its context to complete or the one
// passed to it (e.g. a request's context). It's a shorthand for Emit with its
// return value used in a `select` along with a passed context.
func (client *Client) EmitSync(ctx context.Context, event Event) (err error) {
	eventCtx := client.Emit(event)

	select {
	case <-eventCtx.Done():
		{
			if err := eventCtx.Err(); err != context.Canceled {
				return err
			}

			return nil
		}
	case <-ctx.Done():
		{
			return ctx.Err()
		}
	}
}

func (client *Client) emitTimer(event Event) {
	client.EmitNonBlocking(event)
}

func (client *Client) setState(state State) {
	client.mutex.Lock()
	client.state = state
	client.mutex.Unlock()

	client.logger.Debug("state", "state", state.String())
}

// closeConn closes the connection without stopping the reconnect cycle, as
// opposed to Disconnect. The reader goroutine notices and emits the
// disconnect event that does the actual cleanup.
func (client *Client) closeConn() {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	if client.conn != nil {
		_ = client.conn.Close()
	}
}

// attemptConnect dials the server. It runs off the event loop since dialing
// can block for seconds; the outcome is delivered back to the loop as either
// a `client.connect` or a `client.connectfailed` event.
func (client *Client) attemptConnect() {
	var conn net.Conn
	var err error

	addr := client.config.Addr()
	dialer := &net.Dialer{Timeout: client.config.DialTimeout}

	if client.config.SSL {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{
			InsecureSkipVerify: client.config.SkipSSLVerification,
		})
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}

	if err != nil {
		client.EmitNonBlocking(NewErrorEvent("connect", err.Error()))
		client.EmitNonBlocking(NewEvent("client", "connectfailed"))
		return
	}

	client.mutex.Lock()
	client.conn = conn
	client.connSeq++
	seq := client.connSeq
	client.mutex.Unlock()

	go client.readLoop(conn, seq)

	event := NewEvent("client", "connect")
	event.Args = append(event.Args, strconv.Itoa(seq))
	client.EmitNonBlocking(event)
}

// readLoop delivers parsed lines from one connection into the event loop,
// one event per line. The sequence number ties its disconnect event to the
// connection it belongs to, so a late read error from a dead connection can't
// tear down its replacement.
func (client *Client) readLoop(conn net.Conn, seq int) {
	reader := bufio.NewReader(conn)
	replacer := strings.NewReplacer("\r", "", "\n", "")

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		line = replacer.Replace(line)

		event, err := ParseMessage(line)
		if err != nil {
			client.logger.Debug("dropped unparsable line", "line", line)
			continue
		}

		client.Emit(event)
	}

	event := NewEvent("client", "disconnect")
	event.Args = append(event.Args, strconv.Itoa(seq))
	client.EmitNonBlocking(event)
}

func (client *Client) handleEventLoop() {
	for {
		select {
		case event, ok := <-client.events:
			{
				if !ok {
					goto end
				}

				client.handleEvent(event)
				client.dispatch(event)

				event.cancel()
			}
		case <-client.ctx.Done():
			{
				goto end
			}
		}
	}

end:

	client.pacing.Stop()
	client.keepalive.Stop()
	client.reconnect.Stop()

	_ = client.Disconnect()

	event := NewEvent("client", "destroy")
	event.ctx, event.cancel = context.WithCancel(client.ctx)

	client.handleEvent(&event)
	client.dispatch(&event)

	event.cancel()
}

func (client *Client) dispatch(event *Event) {
	client.mutex.RLock()
	handlers := client.handlers
	client.mutex.RUnlock()

	for _, handler := range handlers {
		handler(event, client)
	}
}

// handleEvent is always first and gets to break a few rules.
func (client *Client) handleEvent(event *Event) {
	if event.kind == "packet" {
		client.metrics.LinesReceived.Inc()

		// A prefixed line without a user@host part came from the server
		// itself; its prefix is the keepalive PING target from here on.
		if event.Nick != "" && event.User == "" {
			client.mutex.Lock()
			client.serverPrefix = event.Nick
			client.mutex.Unlock()
		}
	}

	switch event.name {

	// Ping pong
	case "packet.ping":
		{
			message := "PONG"
			for _, arg := range event.Args {
				message += " " + arg
			}
			if event.Text != "" {
				message += " :" + event.Text
			}

			// The reply must not wait behind paced traffic, or the server
			// may time the connection out while the queue drains.
			if err := client.Send(message); err == nil {
				client.keepalive.Reschedule(client.config.KeepaliveInterval)
			}
		}

	case "packet.pong":
		{
			// Reply to our own liveness probe; nothing to do.
		}

	// Connection state machine
	case "timer.reconnect":
		{
			if !client.reconnect.Matches(event) {
				break
			}

			client.mutex.RLock()
			quit := client.quit
			client.mutex.RUnlock()
			if quit {
				break
			}

			client.setState(StateConnecting)
			go client.attemptConnect()
		}

	case "client.connectfailed":
		{
			client.setState(StateDisconnected)
			client.logger.Info("connect failed, retrying", "backoff", client.config.ReconnectInterval)
			client.reconnect.Reschedule(client.config.ReconnectInterval)
		}

	case "client.connect":
		{
			client.logger.Info("connected", "addr", client.config.Addr())
			client.metrics.Connected.Set(1)

			client.setState(StateRegistering)

			nick := client.config.Nick
			client.enqueue(fmt.Sprintf("USER %s * * :%s", nick, nick))
			client.enqueue("NICK " + nick)
			for _, channel := range client.config.Channels {
				client.enqueue("JOIN " + channel)
			}

			client.setState(StateActive)
			client.keepalive.Reschedule(client.config.KeepaliveInterval)
		}

	case "client.disconnect":
		{
			client.mutex.Lock()
			stale := event.Arg(0) != strconv.Itoa(client.connSeq)
			if !stale {
				client.conn = nil
			}
			quit := client.quit
			client.mutex.Unlock()

			if stale {
				break
			}

			client.setState(StateDisconnected)
			client.metrics.Connected.Set(0)

			client.pacing.Stop()
			client.keepalive.Stop()
			client.pacingPending = false

			if len(client.queue) > 0 {
				client.logger.Info("dropping queued lines", "count", len(client.queue))
				client.queue = client.queue[:0]
				client.metrics.SendQueueDepth.Set(0)
			}

			if !quit {
				client.metrics.Reconnects.Inc()
				client.logger.Info("connection lost, reconnecting", "backoff", client.config.ReconnectInterval)
				client.reconnect.Reschedule(client.config.ReconnectInterval)
			}
		}

	// Rate-limited sender
	case "send.queued":
		{
			client.enqueue(event.Text)
		}

	case "timer.pacing":
		{
			if !client.pacing.Matches(event) {
				break
			}

			client.pacingPending = false
			client.handlePacingTick()
		}

	// Keepalive scheduler
	case "timer.keepalive":
		{
			if !client.keepalive.Matches(event) {
				break
			}
			if client.State() != StateActive {
				break
			}

			if err := client.Send("PING " + client.pingTarget()); err == nil {
				client.keepalive.Reschedule(client.config.KeepaliveInterval)
			}
		}

	default:
		{
			if event.kind == "error" {
				client.logger.Warn("client error", "code", event.verb, "error", event.Text)
			} else if event.kind == "packet" {
				// Unmatched shapes are logged and dropped; handlers get
				// their look at the event after this.
				client.logger.Debug("packet", "verb", event.verb, "args", event.Args, "text", event.Text)
			}
		}
	}
}

// enqueue appends a line to the queue and makes sure a pacing tick is
// pending. Only called from the event loop.
func (client *Client) enqueue(line string) {
	client.queue = append(client.queue, line)
	client.metrics.SendQueueDepth.Set(float64(len(client.queue)))

	if !client.pacingPending {
		client.pacing.Reschedule(0)
		client.pacingPending = true
	}
}

// handlePacingTick runs one round of the sender state machine: rearm the
// keepalive and go idle on an empty queue, transmit the head if the bucket
// grants a token, or back off for as long as the bucket asks. Only called
// from the event loop.
func (client *Client) handlePacingTick() {
	if client.State() != StateActive {
		return
	}

	if len(client.queue) == 0 {
		// Quiet period starts; the keepalive takes over from here.
		client.keepalive.Reschedule(client.config.KeepaliveInterval)
		return
	}

	now := time.Now()
	reservation := client.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		client.keepalive.Stop()

		if delay < 10*time.Millisecond {
			delay = 10 * time.Millisecond
		}
		client.pacing.Reschedule(delay)
		client.pacingPending = true

		return
	}

	line := client.queue[0]
	client.queue = client.queue[1:]
	client.metrics.SendQueueDepth.Set(float64(len(client.queue)))

	if err := client.Send(line); err != nil {
		// Send closed the connection; the disconnect event cleans up.
		return
	}

	client.keepalive.Stop()
	client.pacing.Reschedule(client.config.PacingInterval)
	client.pacingPending = true
}

// pingTarget returns the prefix of the most recent server-originated line,
// falling back to the configured host before anything has been received.
func (client *Client) pingTarget() string {
	client.mutex.RLock()
	defer client.mutex.RUnlock()

	if client.serverPrefix != "" {
		return client.serverPrefix
	}

	return client.config.Server
}
