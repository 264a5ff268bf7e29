package chat

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testTimeout = 2 * time.Second

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// pipeServer is the far end of an in-memory connection handed out by its dialer.
type pipeServer struct {
	t      *testing.T
	conn   net.Conn
	client net.Conn
	lines  chan string
	done   chan struct{}
}

func newPipeServer(t *testing.T) *pipeServer {
	t.Helper()

	clientEnd, serverEnd := net.Pipe()
	s := &pipeServer{
		t:      t,
		conn:   serverEnd,
		client: clientEnd,
		lines:  make(chan string, 64),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		scanner := bufio.NewScanner(serverEnd)
		for scanner.Scan() {
			s.lines <- scanner.Text()
		}
	}()

	t.Cleanup(func() {
		serverEnd.Close()
		clientEnd.Close()
		<-s.done
	})
	return s
}

func (s *pipeServer) dialer() Dialer {
	return DialerFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		return s.client, nil
	})
}

func (s *pipeServer) expect(line string) {
	s.t.Helper()

	select {
	case got := <-s.lines:
		assert.Equal(s.t, line, got)
	case <-time.After(testTimeout):
		s.t.Fatalf("timed out waiting for %q", line)
	}
}

func (s *pipeServer) send(line string) {
	s.t.Helper()

	_, err := io.WriteString(s.conn, line+"\r\n")
	require.NoError(s.t, err)
}

// welcome runs the login exchange up to the channel join.
func (s *pipeServer) welcome(channel string) {
	s.t.Helper()

	s.expect("PASS oauth:secret")
	s.expect("NICK lightbot")
	s.send(":tmi.twitch.tv 001 lightbot :Welcome, GLHF!")
	s.expect("JOIN " + channel)
}

func newTestClient(s *pipeServer, cfg Config) *Client {
	if cfg.Nick == "" {
		cfg.Nick = "lightbot"
	}
	if cfg.Secret == "" {
		cfg.Secret = "oauth:secret"
	}
	if cfg.Channel == "" {
		cfg.Channel = "MyStream"
	}
	return New(cfg, WithDialer(s.dialer()))
}

func nextEvent(t *testing.T, c *Client) Event {
	t.Helper()

	select {
	case evt, ok := <-c.Events():
		require.True(t, ok, "events channel closed")
		return evt
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for a chat event")
	}
	return Event{}
}

func requireEventsClosed(t *testing.T, c *Client) {
	t.Helper()

	select {
	case _, ok := <-c.Events():
		require.False(t, ok, "expected no further events")
	case <-time.After(testTimeout):
		t.Fatal("events channel was not closed")
	}
	<-c.Done()
}

func TestClientJoinsAndDelivers(t *testing.T) {
	t.Parallel()

	s := newPipeServer(t)
	c := newTestClient(s, Config{})
	require.NoError(t, c.Connect(context.Background()))

	s.welcome("#mystream")
	assert.Equal(t, EventJoined, nextEvent(t, c).Type)
	assert.True(t, c.IsConnected())

	c.Send("!lights red\n!strobe")
	s.expect("PRIVMSG #mystream :!lights red !strobe")

	s.conn.Close()
	evt := nextEvent(t, c)
	assert.Equal(t, EventDisconnected, evt.Type)
	assert.NoError(t, evt.Err)
	requireEventsClosed(t, c)
	assert.Equal(t, StateDisconnected, c.State())
	assert.False(t, c.IsConnected())
}

func TestClientAnswersPing(t *testing.T) {
	t.Parallel()

	s := newPipeServer(t)
	c := newTestClient(s, Config{})
	require.NoError(t, c.Connect(context.Background()))

	s.welcome("#mystream")
	nextEvent(t, c)

	s.send("PING :tmi.twitch.tv")
	s.expect("PONG tmi.twitch.tv")

	c.Disconnect()
	s.expect("QUIT")
	assert.Equal(t, EventDisconnected, nextEvent(t, c).Type)
	requireEventsClosed(t, c)
}

func TestClientSkipsMalformedLines(t *testing.T) {
	t.Parallel()

	s := newPipeServer(t)
	c := newTestClient(s, Config{})
	require.NoError(t, c.Connect(context.Background()))

	s.welcome("#mystream")
	nextEvent(t, c)

	s.send("")
	s.send(":tmi.twitch.tv")
	s.send("@badge-info=;color=#FF0000 :tmi.twitch.tv PING :tmi.twitch.tv")
	s.expect("PONG tmi.twitch.tv")
	assert.True(t, c.IsConnected())

	c.Disconnect()
	s.expect("QUIT")
	assert.Equal(t, EventDisconnected, nextEvent(t, c).Type)
	requireEventsClosed(t, c)
}

func TestClientDisconnectAbortsDial(t *testing.T) {
	t.Parallel()

	dialing := make(chan struct{})
	c := New(Config{Nick: "lightbot", Channel: "x", DialTimeout: time.Minute}, WithDialer(DialerFunc(
		func(ctx context.Context, network, address string) (net.Conn, error) {
			close(dialing)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	)))
	require.NoError(t, c.Connect(context.Background()))
	<-dialing

	c.Disconnect()
	evt := nextEvent(t, c)
	assert.Equal(t, EventConnectFailed, evt.Type)
	assert.NoError(t, evt.Err)
	requireEventsClosed(t, c)
}

func TestClientClosedBeforeWelcomeFails(t *testing.T) {
	t.Parallel()

	s := newPipeServer(t)
	c := newTestClient(s, Config{})
	require.NoError(t, c.Connect(context.Background()))

	s.expect("PASS oauth:secret")
	s.expect("NICK lightbot")
	s.send(":tmi.twitch.tv NOTICE * :Login authentication failed")
	s.conn.Close()

	assert.Equal(t, EventConnectFailed, nextEvent(t, c).Type)
	requireEventsClosed(t, c)
	assert.Equal(t, StateFailed, c.State())
}

func TestClientDialErrorFails(t *testing.T) {
	t.Parallel()

	dialErr := errors.New("connection refused")
	c := New(Config{Nick: "lightbot", Channel: "x"}, WithDialer(DialerFunc(
		func(ctx context.Context, network, address string) (net.Conn, error) {
			assert.Equal(t, "tcp", network)
			assert.Equal(t, DefaultServer, address)
			return nil, dialErr
		},
	)))
	require.NoError(t, c.Connect(context.Background()))

	evt := nextEvent(t, c)
	assert.Equal(t, EventConnectFailed, evt.Type)
	assert.ErrorIs(t, evt.Err, dialErr)
	requireEventsClosed(t, c)
}

func TestClientConnectTwice(t *testing.T) {
	t.Parallel()

	c := New(Config{Nick: "lightbot", Channel: "x"}, WithDialer(DialerFunc(
		func(ctx context.Context, network, address string) (net.Conn, error) {
			return nil, errors.New("offline")
		},
	)))
	require.NoError(t, c.Connect(context.Background()))
	assert.ErrorIs(t, c.Connect(context.Background()), ErrAlreadyStarted)

	assert.Equal(t, EventConnectFailed, nextEvent(t, c).Type)
	requireEventsClosed(t, c)
}

func TestClientSendWhileDisconnectedIsDropped(t *testing.T) {
	t.Parallel()

	c := New(Config{Nick: "lightbot", Channel: "x"})
	assert.NotPanics(t, func() {
		c.Send("!lights off")
	})
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, "#x", c.Channel())

	// Disconnect on an unused client is a no-op.
	c.Disconnect()
}

func TestClientRateLimitDropsExcess(t *testing.T) {
	t.Parallel()

	s := newPipeServer(t)
	c := newTestClient(s, Config{RateLimit: 2})
	require.NoError(t, c.Connect(context.Background()))

	s.welcome("#mystream")
	nextEvent(t, c)

	c.Send("one")
	c.Send("two")
	c.Send("three")
	s.expect("PRIVMSG #mystream :one")
	s.expect("PRIVMSG #mystream :two")

	c.Disconnect()
	s.expect("QUIT")
	assert.Equal(t, EventDisconnected, nextEvent(t, c).Type)
	requireEventsClosed(t, c)
}

func TestClientContextCancelDisconnects(t *testing.T) {
	t.Parallel()

	s := newPipeServer(t)
	c := newTestClient(s, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Connect(ctx))

	s.welcome("#mystream")
	nextEvent(t, c)

	cancel()
	assert.Equal(t, EventDisconnected, nextEvent(t, c).Type)
	requireEventsClosed(t, c)
}

func TestClientSkipsPassWithoutSecret(t *testing.T) {
	t.Parallel()

	s := newPipeServer(t)
	c := New(Config{Nick: "justinfan123", Channel: "#MyStream"}, WithDialer(s.dialer()))
	require.NoError(t, c.Connect(context.Background()))

	s.expect("NICK justinfan123")
	s.send(":tmi.twitch.tv 001 justinfan123 :Welcome")
	s.expect("JOIN #mystream")
	nextEvent(t, c)

	s.conn.Close()
	assert.Equal(t, EventDisconnected, nextEvent(t, c).Type)
	requireEventsClosed(t, c)
}
