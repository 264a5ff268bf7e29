// Package chat implements the connection used to deliver fired cues to a stream's chat channel. It speaks
// the line-oriented IRC protocol used by Twitch chat.
package chat

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/robmorgan/lightplan/logger"
	"github.com/robmorgan/lightplan/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gopkg.in/irc.v4"
)

const (
	DefaultServer       = "irc.chat.twitch.tv:6667"
	DefaultDialTimeout  = 10 * time.Second
	DefaultWriteTimeout = 5 * time.Second

	// rateWindow is the period RateLimit is expressed over.
	rateWindow = 30 * time.Second
)

var (
	// ErrAlreadyStarted is returned by Connect on a client that has already been used.
	ErrAlreadyStarted = errors.New("chat client already started")

	errNotConnected = errors.New("chat client is not connected")
)

// Config holds the connection settings of a Client.
type Config struct {
	// Server is the host:port of the chat server.
	Server string
	// Nick is the identity to log in as.
	Nick string
	// Secret is the password or OAuth token for Nick. It is never logged.
	Secret string
	// Channel is the channel cues are sent to. A leading '#' is added when missing.
	Channel string

	DialTimeout  time.Duration
	WriteTimeout time.Duration

	// RateLimit caps outbound messages per 30 seconds. Messages over budget are dropped. 0 disables the limit.
	RateLimit int
}

// Dialer opens the transport connection.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DialerFunc adapts a function to a Dialer.
type DialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

// DialContext calls f.
func (f DialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the TCP dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithLogger sets the logger entry the client logs to.
func WithLogger(l *logrus.Entry) Option {
	return func(c *Client) {
		c.log = l
	}
}

// Client is a single-use chat connection. Connect may be called once; the outcome is reported on Events as
// EventJoined followed by exactly one of EventDisconnected (the channel had been joined) or
// EventConnectFailed (it never was).
type Client struct {
	cfg     Config
	channel string
	dialer  Dialer
	limiter *rate.Limiter
	log     *logrus.Entry

	mu         sync.Mutex
	state      State
	started    bool
	everJoined bool
	closing    bool
	cancel     context.CancelFunc
	conn       net.Conn
	irc        *irc.Conn

	writeMu sync.Mutex

	events chan Event
	done   chan struct{}
}

// New creates a client for cfg. Nothing is dialled until Connect.
func New(cfg Config, opts ...Option) *Client {
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	c := &Client{
		cfg:     cfg,
		channel: NormalizeChannel(cfg.Channel),
		dialer:  &net.Dialer{},
		state:   StateDisconnected,
		events:  make(chan Event, 4),
		done:    make(chan struct{}),
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RateLimit)/rateWindow.Seconds()), cfg.RateLimit)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.GetProjectLogger()
	}
	c.log = c.log.WithFields(logrus.Fields{"server": cfg.Server, "channel": c.channel})

	return c
}

// Channel returns the normalized channel name.
func (c *Client) Channel() string {
	return c.channel
}

// Events returns the connection notifications. The channel is closed after the final event.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Done is closed when the connection goroutine has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the channel is joined and messages will be sent.
func (c *Client) IsConnected() bool {
	return c.State() == StateJoined
}

// Connect dials the server and logs in on a new goroutine. Cancelling ctx closes the connection.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.state = StateConnecting
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	c.log.Infof("Connecting to %s as %s", c.cfg.Server, c.cfg.Nick)
	go c.run(runCtx)
	return nil
}

// Disconnect quits the session and closes the connection, or abandons a dial still in progress. The outcome
// is still reported on Events.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closing = true
	conn := c.conn
	state := c.state
	cancel := c.cancel
	c.mu.Unlock()

	if conn != nil && state == StateJoined {
		if err := c.writeMessage(cmdQuit); err != nil {
			c.log.Debugf("QUIT failed: %v", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			c.log.Debugf("Closing connection: %v", err)
		}
	}
	if cancel != nil {
		cancel()
	}
}

// Send posts text to the channel. It never blocks on the network for longer than the write timeout and
// never fails: when the channel is not joined the text is dropped and logged.
func (c *Client) Send(text string) {
	text = sanitize(text)
	if text == "" {
		return
	}

	if !c.IsConnected() {
		c.log.Warnf("Not connected, dropping message: %s", text)
		metrics.ChatMessages.WithLabelValues(metrics.ResultDropped).Inc()
		return
	}
	if c.limiter != nil && !c.limiter.Allow() {
		c.log.Warnf("Rate limit reached, dropping message: %s", text)
		metrics.ChatMessages.WithLabelValues(metrics.ResultLimited).Inc()
		return
	}

	err := c.write(func(w *irc.Conn) error {
		return w.Writef("%s %s :%s", cmdPrivmsg, c.channel, text)
	})
	if err != nil {
		c.log.Errorf("Error sending message %q: %v", text, err)
		metrics.ChatMessages.WithLabelValues(metrics.ResultError).Inc()
		return
	}
	c.log.Debugf("Sent: %s", text)
	metrics.ChatMessages.WithLabelValues(metrics.ResultSent).Inc()
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	defer c.cancel()

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	conn, err := c.dialer.DialContext(dialCtx, "tcp", c.cfg.Server)
	cancel()

	var ic *irc.Conn
	c.mu.Lock()
	closing := c.closing
	if err == nil && !closing {
		ic = irc.NewConn(conn)
		c.conn = conn
		c.irc = ic
	}
	c.mu.Unlock()

	if closing {
		if conn != nil {
			conn.Close()
		}
		c.closed(nil)
		return
	}
	if err != nil {
		c.closed(err)
		return
	}

	if err := c.login(); err != nil {
		conn.Close()
		c.closed(err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.readLoop(ic)
	})
	g.Go(func() error {
		<-gctx.Done()
		return conn.Close()
	})

	err = g.Wait()
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		err = nil
	}
	c.closed(err)
}

func (c *Client) login() error {
	if c.cfg.Secret != "" {
		if err := c.writeMessage(cmdPass, c.cfg.Secret); err != nil {
			return err
		}
	}
	return c.writeMessage(cmdNick, c.cfg.Nick)
}

// readLoop processes server messages until the connection ends. It always returns a non-nil error so the
// watcher goroutine is released.
func (c *Client) readLoop(r *irc.Conn) error {
	for {
		msg, err := r.ReadMessage()
		if err != nil {
			if isParseError(err) {
				c.log.Debugf("Ignoring line: %v", err)
				continue
			}
			return err
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg *irc.Message) {
	switch msg.Command {
	case cmdPing:
		if err := c.writeMessage(cmdPong, msg.Params...); err != nil {
			c.log.Errorf("Error answering PING: %v", err)
		}
	case rplWelcome:
		c.join()
	case cmdNotice:
		text := msg.Trailing()
		if strings.Contains(strings.ToLower(text), "authentication failed") ||
			strings.Contains(strings.ToLower(text), "improperly formatted auth") {
			c.log.Errorf("Login rejected: %s", text)
			return
		}
		c.log.Infof("Notice: %s", text)
	case errNoSuchChan:
		c.log.Errorf("No such channel: %s", c.channel)
	case cmdReconnect:
		c.log.Warn("Server requested a reconnect")
	case cmdJoin:
		c.log.Debugf("Joined %s", msg.Trailing())
	default:
		c.log.Debugf("< %s", msg.String())
	}
}

// join requests the channel and moves to StateJoined without waiting for the server to confirm.
func (c *Client) join() {
	if err := c.writeMessage(cmdJoin, c.channel); err != nil {
		c.log.Errorf("Error joining %s: %v", c.channel, err)
		return
	}

	c.mu.Lock()
	joined := c.state == StateConnecting
	if joined {
		c.state = StateJoined
		c.everJoined = true
	}
	c.mu.Unlock()

	if !joined {
		return
	}
	c.log.Infof("Joined %s", c.channel)
	metrics.ChatConnects.WithLabelValues("joined").Inc()
	metrics.ChatJoined.Set(1)
	c.events <- Event{Type: EventJoined}
}

// closed records the end of the connection. Whether it was a failed attempt or a finished session is
// decided under the same lock that join uses.
func (c *Client) closed(err error) {
	c.mu.Lock()
	c.conn = nil
	c.irc = nil
	var evt Event
	if c.everJoined {
		c.state = StateDisconnected
		evt = Event{Type: EventDisconnected, Err: err}
	} else {
		c.state = StateFailed
		evt = Event{Type: EventConnectFailed, Err: err}
	}
	c.mu.Unlock()

	if evt.Type == EventDisconnected {
		c.log.Info("Disconnected")
		metrics.ChatJoined.Set(0)
	} else {
		c.log.WithError(err).Error("Connection failed")
		metrics.ChatConnects.WithLabelValues("failed").Inc()
	}

	c.events <- evt
	close(c.events)
}

func (c *Client) writeMessage(command string, params ...string) error {
	return c.write(func(w *irc.Conn) error {
		return w.WriteMessage(&irc.Message{Command: command, Params: params})
	})
}

// write runs fn with exclusive use of the connection and the write timeout armed.
func (c *Client) write(fn func(w *irc.Conn) error) error {
	c.mu.Lock()
	conn, w := c.conn, c.irc
	c.mu.Unlock()
	if conn == nil {
		return errNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	return fn(w)
}
