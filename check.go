package main

import (
	"fmt"
	"io"
	"os"

	"github.com/robmorgan/lightplan/cuelist"
	"github.com/robmorgan/lightplan/utils"
	"github.com/urfave/cli"
	"golang.org/x/exp/slices"
)

var (
	checkStreamDelay int64

	checkFlags = []cli.Flag{
		cli.Int64Flag{
			Name:        "stream-delay, d",
			Usage:       "stream delay in ms (defaults to run.stream_delay_ms)",
			Value:       -1,
			Destination: &checkStreamDelay,
		},
	}
)

func checkPlan(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.NewExitError("a light plan file is required", 1)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	plan, err := cuelist.LoadFile(path)
	if err != nil {
		return err
	}

	delay := cfg.Run.StreamDelayMs
	if checkStreamDelay >= 0 {
		delay = checkStreamDelay
	}
	printSchedule(os.Stdout, plan, plan.RunConfig(delay, cfg.Run.DelayAdjustMs))
	return nil
}

// printSchedule writes the cues of plan in the order a run would fire them.
func printSchedule(w io.Writer, plan *cuelist.CueList, cfg cuelist.RunConfig) {
	scheduled := cuelist.Compensate(plan.Cues, cfg)
	slices.SortStableFunc(scheduled, func(a, b cuelist.ScheduledCue) bool {
		return a.AdjustedOffset < b.AdjustedOffset
	})

	fmt.Fprintf(w, "%s (%d cues, stream delay %d ms, runtime adjust %+d ms)\n\n",
		plan.Name, len(scheduled), cfg.StreamDelayMs, cfg.RuntimeAdjustMs)
	fmt.Fprintf(w, "%-4s %-11s %-11s %s\n", "#", "FIRES AT", "OFFSET", "COMMAND")

	early := 0
	for _, sc := range scheduled {
		fireAt := sc.FireAt(cfg.RuntimeAdjustMs)
		flags := ""
		if sc.IgnoreDelay {
			flags = " (ignores delay)"
		}
		if fireAt < 0 {
			early++
			flags += " (fires at start)"
		}
		fmt.Fprintf(w, "%-4d %-11s %-11s %s%s\n",
			sc.Index, utils.MsToStr(fireAt, true), utils.MsToStr(sc.Offset, true), sc.Command, flags)
	}

	if early > 0 {
		fmt.Fprintf(w, "\n%d cue(s) are due before the run starts and will fire immediately.\n", early)
	}
}
