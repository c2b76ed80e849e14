package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"daybook/internal/engine"
	"daybook/internal/errors"
	"daybook/internal/sched"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(a *app) *cli.App {
	cliApp := &cli.App{
		Name:    "daybook",
		Usage:   "Calendar archiving and conflict resolution",
		Version: Version,
		Commands: []*cli.Command{
			runCmd(a),
			dayCmd(a),
			conflictsCmd(a),
			runsCmd(a),
			scheduleCmd(a),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

// runCmd creates the run command.
func runCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Archive one user's calendar for one day",
		ArgsUsage: "<user>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "day", Aliases: []string{"d"}, Usage: "Day to archive (YYYY-MM-DD), defaults to yesterday"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("user is required"))
			}
			user := c.Args().First()

			day, err := resolveDay(a, c.String("day"))
			if err != nil {
				return outputError(err)
			}

			summary, err := a.eng.Run(c.Context, user, day)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(summary)
		},
	}
}

// dayCmd creates the day command.
func dayCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "day",
		Usage:     "Show the archived records of one user's day",
		ArgsUsage: "<user>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "day", Aliases: []string{"d"}, Usage: "Day to read (YYYY-MM-DD), defaults to yesterday"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("user is required"))
			}
			user := c.Args().First()

			day, err := resolveDay(a, c.String("day"))
			if err != nil {
				return outputError(err)
			}
			dayKey := day.Format(engine.DayFormat)

			records, err := a.store.GetDay(c.Context, user, dayKey)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"user":    user,
				"day":     dayKey,
				"records": records,
			})
		},
	}
}

// conflictsCmd creates the conflicts command.
func conflictsCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "conflicts",
		Usage:     "List conflict-pending records awaiting manual resolution",
		ArgsUsage: "<user>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "day", Aliases: []string{"d"}, Usage: "Filter by day (YYYY-MM-DD)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("user is required"))
			}
			user := c.Args().First()

			var day *string
			if s := c.String("day"); s != "" {
				d, err := resolveDay(a, s)
				if err != nil {
					return outputError(err)
				}
				key := d.Format(engine.DayFormat)
				day = &key
			}

			records, err := a.store.ListConflicts(c.Context, user, day)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"user":      user,
				"conflicts": records,
			})
		},
	}
}

// runsCmd creates the runs command.
func runsCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "runs",
		Usage:     "List archiving run summaries, newest first",
		ArgsUsage: "<user>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "day", Aliases: []string{"d"}, Usage: "Filter by day (YYYY-MM-DD)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Maximum number of runs"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("user is required"))
			}
			user := c.Args().First()

			var day *string
			if s := c.String("day"); s != "" {
				d, err := resolveDay(a, s)
				if err != nil {
					return outputError(err)
				}
				key := d.Format(engine.DayFormat)
				day = &key
			}

			runs, err := a.store.ListRuns(c.Context, user, day, c.Int("limit"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"user": user,
				"runs": runs,
			})
		},
	}
}

// scheduleCmd creates the schedule command: it blocks, archiving every
// configured user on the cron schedule until interrupted.
func scheduleCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "Run the cron scheduler for all configured users (blocks)",
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			s := sched.New(a.eng, a.cfg, a.loc, a.log)
			return s.Start(ctx)
		},
	}
}

// Helper functions

// resolveDay parses a YYYY-MM-DD day flag, defaulting to yesterday in the
// configured timezone.
func resolveDay(a *app, s string) (time.Time, error) {
	if s == "" {
		now := time.Now().In(a.loc)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.loc).AddDate(0, 0, -1), nil
	}
	day, err := time.ParseInLocation(engine.DayFormat, s, a.loc)
	if err != nil {
		return time.Time{}, errors.NewInvalidRequest("day must be formatted YYYY-MM-DD")
	}
	return day, nil
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if dErr, ok := err.(*errors.Error); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", dErr.Code, dErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
