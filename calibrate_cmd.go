package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/robmorgan/lightplan/calibrate"
	"github.com/robmorgan/lightplan/chat"
	"github.com/robmorgan/lightplan/show"
	"github.com/urfave/cli"
)

var (
	calibrateCommand string

	calibrateFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "command",
			Usage:       "chat command to send; pick one whose effect is easy to spot",
			Value:       calibrate.DefaultCommands[0],
			Destination: &calibrateCommand,
		},
	}
)

func calibrateDelay(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	host := show.New(cfg, show.WithAutoRetry())
	defer host.Close()

	delay, err := measureDelay(ctx, host, os.Stdin, os.Stdout, calibrateCommand)
	if err != nil {
		return err
	}
	fmt.Printf("Measured stream delay: %d ms\nSet run.stream_delay_ms: %d in your config (or LIGHTPLAN_STREAM_DELAY_MS).\n", delay, delay)
	return nil
}

// measureDelay joins chat, sends command and times how long until the operator presses enter.
func measureDelay(ctx context.Context, host *show.Host, in io.Reader, out io.Writer, command string) (int64, error) {
	if err := host.Connect(); err != nil {
		return 0, err
	}
	if err := waitForJoin(ctx, host); err != nil {
		return 0, err
	}

	probe := calibrate.NewProbe(host, nil)
	fmt.Fprintf(out, "Press enter to send %s, then press enter again as soon as it shows on stream.\n", command)

	// one reader for the whole measurement; a read already blocked on a terminal when ctx ends returns with
	// the next line or at exit
	lines := make(chan error)
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		reader := bufio.NewReader(in)
		for {
			_, err := reader.ReadString('\n')
			select {
			case lines <- err:
			case <-finished:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for step := 0; step < 2; step++ {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case err := <-lines:
			if err != nil {
				return 0, err
			}
		}
		if step == 0 {
			probe.Send(command)
			fmt.Fprintln(out, "Sent. Waiting...")
		}
	}

	return probe.Stop()
}

func waitForJoin(ctx context.Context, host *show.Host) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u := <-host.Updates():
			cu, ok := u.(show.ChatUpdate)
			if !ok {
				continue
			}
			switch cu.Event.Type {
			case chat.EventJoined:
				return nil
			case chat.EventConnectFailed, chat.EventDisconnected:
				if !cu.Retrying {
					return connectError(cu)
				}
			}
		}
	}
}
