package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/robmorgan/lightplan/config"
	"github.com/robmorgan/lightplan/cuelist"
	"github.com/robmorgan/lightplan/show"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatServer welcomes every login and forwards received PRIVMSG lines.
type chatServer struct {
	fail bool
	msgs chan string
}

func (s *chatServer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if s.fail {
		return nil, errors.New("connection refused")
	}
	client, server := net.Pipe()
	go func() {
		defer server.Close()
		scanner := bufio.NewScanner(server)
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "NICK "):
				if _, err := io.WriteString(server, ":tmi.twitch.tv 001 lightbot :Welcome\r\n"); err != nil {
					return
				}
			case strings.HasPrefix(line, "PRIVMSG "):
				s.msgs <- line
			case line == "QUIT":
				return
			}
		}
	}()
	return client, nil
}

func testConfig() config.Config {
	cfg := config.NewConfig()
	cfg.Chat.Username = "lightbot"
	cfg.Chat.Channel = "mystream"
	cfg.Chat.MaxRetries = 0
	return cfg
}

func TestAppCommands(t *testing.T) {
	t.Parallel()

	app := newApp()
	for _, name := range []string{"run", "check", "calibrate"} {
		assert.NotNil(t, app.Command(name), name)
	}
}

func TestPrintSchedule(t *testing.T) {
	t.Parallel()

	plan := cuelist.NewCueList("Artist - Song")
	plan.NewCue(5000, "!blue", "", false)
	plan.NewCue(1000, "!intro", "", false)
	plan.NewCue(3000, "!flash", "", true)

	var out bytes.Buffer
	printSchedule(&out, plan, plan.RunConfig(2000, 0))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 8)
	assert.Contains(t, lines[0], "Artist - Song (3 cues, stream delay 2000 ms, runtime adjust +0 ms)")
	assert.Contains(t, lines[3], "!intro (fires at start)")
	assert.True(t, strings.HasPrefix(lines[3], "1    -00:01.000"))
	assert.True(t, strings.HasPrefix(lines[4], "0    00:03.000"))
	assert.Contains(t, lines[5], "!flash (ignores delay)")
	assert.Contains(t, lines[7], "1 cue(s) are due before the run starts")
}

func TestRunHeadlessFailsWithoutChat(t *testing.T) {
	t.Parallel()

	host := show.New(testConfig(), show.WithDialer(&chatServer{fail: true}), show.WithAutoRetry())
	defer host.Close()
	host.LoadPlan(cuelist.NewCueList("Song"))

	err := runHeadless(context.Background(), host)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not join chat after 1 attempt(s)")
	assert.False(t, host.Running())
}

func TestRunHeadlessRunsPlan(t *testing.T) {
	t.Parallel()

	srv := &chatServer{msgs: make(chan string, 4)}
	host := show.New(testConfig(), show.WithDialer(srv))
	defer host.Close()

	plan := cuelist.NewCueList("Song")
	plan.NewCue(0, "!red", "", false)
	plan.NewCue(20, "!blue", "", false)
	host.LoadPlan(plan)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, runHeadless(ctx, host))

	assert.Equal(t, "PRIVMSG #mystream :!red", <-srv.msgs)
	assert.Equal(t, "PRIVMSG #mystream :!blue", <-srv.msgs)
}

func TestMeasureDelay(t *testing.T) {
	t.Parallel()

	srv := &chatServer{msgs: make(chan string, 4)}
	host := show.New(testConfig(), show.WithDialer(srv))
	defer host.Close()

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	delay, err := measureDelay(ctx, host, strings.NewReader("\n\n"), &out, "!arctic")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, delay, int64(0))
	assert.Equal(t, "PRIVMSG #mystream :!arctic", <-srv.msgs)
	assert.Contains(t, out.String(), "Sent. Waiting...")
}

func TestMeasureDelayStopsOnClosedInput(t *testing.T) {
	t.Parallel()

	srv := &chatServer{msgs: make(chan string, 4)}
	host := show.New(testConfig(), show.WithDialer(srv))
	defer host.Close()

	_, err := measureDelay(context.Background(), host, strings.NewReader(""), io.Discard, "!dim")
	assert.ErrorIs(t, err, io.EOF)
}

func TestMeasureDelayStopsOnCancel(t *testing.T) {
	t.Parallel()

	srv := &chatServer{msgs: make(chan string, 4)}
	host := show.New(testConfig(), show.WithDialer(srv))
	defer host.Close()

	in, feed := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := measureDelay(ctx, host, in, io.Discard, "!dim")
		result <- err
	}()

	_, err := io.WriteString(feed, "\n")
	require.NoError(t, err)
	assert.Equal(t, "PRIVMSG #mystream :!dim", <-srv.msgs)

	cancel()
	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("measureDelay did not return after cancel")
	}

	// the reader goroutine exits once its blocked read returns
	require.NoError(t, feed.Close())
}
