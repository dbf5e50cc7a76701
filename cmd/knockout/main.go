/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/mikeb26/knockout-tdbot/artifact"
	"github.com/mikeb26/knockout-tdbot/config"
	"github.com/mikeb26/knockout-tdbot/internal"
	"github.com/mikeb26/knockout-tdbot/knockout"
	"github.com/mikeb26/knockout-tdbot/lichess"
	"github.com/mikeb26/knockout-tdbot/notify"
	"github.com/mikeb26/knockout-tdbot/render"
)

// exit statuses
const (
	exitOK = iota
	exitFailure
	exitConfig
	exitInsufficient
)

var log = logrus.New()

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()

	err := newApp().RunContext(ctx, args)
	if err == nil {
		return exitOK
	}
	log.Errorf("%v", err)

	return exitStatus(err)
}

func exitStatus(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, config.ErrInvalidConfig):
		return exitConfig
	case errors.Is(err, knockout.ErrInsufficientParticipants):
		return exitInsufficient
	default:
		return exitFailure
	}
}

func newApp() *cli.App {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "knockout.yaml",
		Usage:   "path to the tournament configuration file",
	}

	return &cli.App{
		Name:           "knockout",
		Usage:          "run a knock-out tournament on Lichess",
		Version:        internal.Version,
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				log.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "create the tournament and direct it to the final",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:    "lichess-token",
						Usage:   "Lichess API token",
						EnvVars: []string{"LICHESS_TOKEN"},
					},
					&cli.StringFlag{
						Name:  "lichess-token-file",
						Usage: "file whose first line is the Lichess API token",
					},
					&cli.StringFlag{
						Name:    "github-token",
						Usage:   "GitHub token used by the github artifact store",
						EnvVars: []string{"GITHUB_TOKEN"},
					},
					&cli.StringFlag{
						Name:  "github-token-file",
						Usage: "file whose first line is the GitHub token",
					},
					&cli.StringFlag{
						Name:  "log-dir",
						Value: "logs",
						Usage: "directory receiving a per-tournament log file",
					},
					&cli.BoolFlag{
						Name:  "skip-checks",
						Usage: "skip the remote prerequisite checks",
					},
				},
				Action: handleRun,
			},
			{
				Name:   "validate",
				Usage:  "validate a configuration file without contacting Lichess",
				Flags:  []cli.Flag{configFlag},
				Action: handleValidate,
			},
			{
				Name:      "seeds",
				Usage:     "print the first round placement for a field size",
				ArgsUsage: "<participants>",
				Action:    handleSeeds,
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func handleValidate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts := cfg.Options
	fmt.Fprintf(c.App.Writer, "%v: ok (%v-%v players, %v match rounds, %v game rounds)\n",
		c.String("config"), opts.MinParticipants, opts.MaxParticipants,
		opts.MatchRounds(), opts.TotalRounds())

	return nil
}

func handleSeeds(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("%w: seeds takes exactly one argument",
			config.ErrInvalidConfig)
	}
	n, err := strconv.Atoi(c.Args().First())
	if err != nil || n < 2 {
		return fmt.Errorf("%w: %q is not a field size", config.ErrInvalidConfig,
			c.Args().First())
	}

	seeded := make([]string, n)
	for i := range seeded {
		seeded[i] = strconv.Itoa(i + 1)
	}
	round, err := knockout.PlaceSeeds(seeded, internal.NextPowerOfTwo(n))
	if err != nil {
		return err
	}

	for k := 0; k < round.NumMatches(); k++ {
		top, bottom := round.Match(k)
		fmt.Fprintf(c.App.Writer, "%3d. %5v vs %v\n", k+1, top.ParticipantID,
			bottom.ParticipantID)
	}

	return nil
}

func readTokens(c *cli.Context, cfg *config.Config) error {
	token, err := config.ReadToken("lichess", c.String("lichess-token"),
		c.String("lichess-token-file"), "lip_")
	if err != nil {
		return err
	}
	if token != "" {
		cfg.Lichess.Token = token
	}

	token, err = config.ReadToken("github", c.String("github-token"),
		c.String("github-token-file"), "github_", "ghp_")
	if err != nil {
		return err
	}
	if token != "" {
		cfg.Artifacts.GitHubToken = token
	}

	if cfg.Lichess.Token == "" {
		return fmt.Errorf("%w: a Lichess token is required", config.ErrInvalidConfig)
	}
	if cfg.Artifacts.Store == "github" && cfg.Artifacts.GitHubToken == "" {
		return fmt.Errorf("%w: the github store requires a GitHub token",
			config.ErrInvalidConfig)
	}

	return nil
}

// checkPrerequisites verifies the remote services the event depends on
// before anything is created.
func checkPrerequisites(ctx context.Context, client *lichess.Client,
	store artifact.Store) error {

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.CheckToken(gctx)
	})
	g.Go(func() error {
		team, err := client.Team(gctx)
		if err != nil {
			return err
		}
		log.WithField("team", team.ID).Infof("main.check: team %v has %v members",
			team.Name, team.NbMembers)
		return nil
	})
	g.Go(func() error {
		return store.Check(gctx)
	})

	return g.Wait()
}

func handleRun(c *cli.Context) error {
	ctx := c.Context

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := readTokens(c, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client := lichess.NewClient(cfg.Lichess.BaseURL, cfg.Lichess.TeamID,
		cfg.Lichess.Token)
	store, err := artifact.New(ctx, cfg.Artifacts, log)
	if err != nil {
		return err
	}
	if !c.Bool("skip-checks") {
		if err := checkPrerequisites(ctx, client, store); err != nil {
			return fmt.Errorf("main.run: prerequisite check failed: %w", err)
		}
	}

	var notifier knockout.Notifier
	if cfg.Discord.WebhookURL != "" {
		d, err := notify.NewDiscord(cfg.Discord.WebhookURL)
		if err != nil {
			return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
		notifier = d
	}

	logDir := c.String("log-dir")
	var logFile *os.File
	defer func() {
		if logFile != nil {
			log.SetOutput(os.Stderr)
			logFile.Close()
		}
	}()

	runner := knockout.NewRunner(knockout.RunnerParams{
		Options:   cfg.Options,
		Host:      client,
		Store:     store,
		Presenter: render.NewPresenter(),
		Notifier:  notifier,
		Log:       log,
		OnCreated: func(id string) {
			f, err := teeLog(logDir, id)
			if err != nil {
				log.Warnf("main.run: could not open log file: %v", err)
				return
			}
			logFile = f
		},
	})

	err = runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("main.run: tournament %v: %w", runner.ID(), err)
	}
	winner, runnerUp := runner.Winner()
	fmt.Fprintf(c.App.Writer, "%v won %v; runner-up %v\n", winner,
		client.TournamentURL(runner.ID()), runnerUp)

	return nil
}

// teeLog mirrors log output to <dir>/<id>.txt.
func teeLog(dir, id string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, id+".txt"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))

	return f, nil
}
