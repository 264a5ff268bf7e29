package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	commonerrors "github.com/gruntwork-io/go-commons/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robmorgan/lightplan/chat"
	"github.com/robmorgan/lightplan/console"
	"github.com/robmorgan/lightplan/cuelist"
	"github.com/robmorgan/lightplan/logger"
	"github.com/robmorgan/lightplan/osctrigger"
	"github.com/robmorgan/lightplan/show"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

var (
	headless bool

	runFlags = []cli.Flag{
		cli.BoolFlag{
			Name:        "headless",
			Usage:       "run without the console: join chat, run the plan once and exit",
			Destination: &headless,
		},
	}
)

func runPlan(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.NewExitError("a light plan file is required", 1)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.GetProjectLogger()
	log.Infof("Loading light plan %s", path)
	plan, err := cuelist.LoadFile(path)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var opts []show.Option
	if headless {
		opts = append(opts, show.WithAutoRetry())
	}
	host := show.New(cfg, opts...)
	defer host.Close()
	host.LoadPlan(plan)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.OSC.Listen != "" {
		srv := osctrigger.NewServer(cfg.OSC.Listen, host)
		g.Go(func() error {
			return srv.ListenAndServe(gctx)
		})
	}
	if cfg.Metrics.Listen != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics.Listen)
		})
	}
	g.Go(func() error {
		defer cancel()
		if headless {
			return runHeadless(gctx, host)
		}
		if err := host.Connect(); err != nil {
			log.Errorf("Not connecting to chat: %v", err)
		}
		return console.Run(gctx, host)
	})

	return g.Wait()
}

// runHeadless starts the plan as soon as chat is joined and returns when the run is over.
func runHeadless(ctx context.Context, host *show.Host) error {
	log := logger.GetProjectLogger()

	if err := host.Connect(); err != nil {
		return commonerrors.WithStackTrace(err)
	}

	started := false
	for {
		select {
		case <-ctx.Done():
			host.StopRun()
			return nil
		case u := <-host.Updates():
			switch u := u.(type) {
			case show.ChatUpdate:
				switch u.Event.Type {
				case chat.EventJoined:
					if started {
						continue
					}
					if err := host.StartRun(); err != nil {
						return err
					}
					started = true
				case chat.EventConnectFailed, chat.EventDisconnected:
					if u.Retrying {
						continue
					}
					if !started {
						return connectError(u)
					}
					log.Warn("Chat connection lost, remaining cues will be dropped")
				}
			case show.RunUpdate:
				if done, ok := u.Event.(cuelist.DoneEvent); ok {
					log.Infof("%s: fired %d of %d cues", done.Reason, done.Fired, done.Total)
					return nil
				}
			}
		}
	}
}

func connectError(u show.ChatUpdate) error {
	if u.Event.Err == nil {
		return fmt.Errorf("could not join chat after %d attempt(s)", u.Attempt)
	}
	return fmt.Errorf("could not join chat after %d attempt(s): %w", u.Attempt, u.Event.Err)
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.GetProjectLogger().Infof("Serving metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
